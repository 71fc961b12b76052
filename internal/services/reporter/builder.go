package reporter

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/ports"
)

// Pipeline bundles the stateless stages a Builder runs every metric through.
type Pipeline struct {
	Resolver     *Resolver
	Sanitize     Sanitizer
	Policy       Policy
	MaxBatchSize int
	Timeout      time.Duration
}

type seriesKey struct {
	name   string
	source string
}

// Builder turns one registry snapshot into size-bounded batches. A Builder
// serves a single pass and is not safe for concurrent use.
type Builder struct {
	p       Pipeline
	tracker *DeltaTracker
	log     *zap.Logger

	source string
	epoch  int64

	batches []domain.Batch
	current []domain.Measurement
	seen    map[seriesKey]struct{}
	total   int
	skipped int
}

// NewBuilder starts a pass stamped with source and epoch (unix seconds).
func NewBuilder(p Pipeline, tracker *DeltaTracker, source string, epoch int64, log *zap.Logger) *Builder {
	if p.MaxBatchSize <= 0 {
		p.MaxBatchSize = domain.DefaultBatchSize
	}
	if p.Sanitize == nil {
		p.Sanitize = LastPassSanitizer
	}
	if p.Resolver == nil {
		p.Resolver = &Resolver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		p:       p,
		tracker: tracker,
		log:     log,
		source:  source,
		epoch:   epoch,
		seen:    make(map[seriesKey]struct{}),
	}
}

// AddSnapshot feeds every metric of s, kind by kind, identities sorted.
func (b *Builder) AddSnapshot(s domain.Snapshot) {
	for _, name := range sortedKeys(s.Gauges) {
		b.AddGauge(name, s.Gauges[name])
	}
	for _, name := range sortedKeys(s.Counters) {
		b.AddCounter(name, s.Counters[name])
	}
	for _, name := range sortedKeys(s.Histograms) {
		b.AddHistogram(name, s.Histograms[name])
	}
	for _, name := range sortedKeys(s.Meters) {
		b.AddMeter(name, s.Meters[name])
	}
	for _, name := range sortedKeys(s.Timers) {
		b.AddTimer(name, s.Timers[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// AddGauge emits the gauge's value under its resolved name.
func (b *Builder) AddGauge(identity string, g domain.Gauge) {
	b.guard(identity, func() {
		v, err := GaugeValue(g.Value)
		if err != nil {
			b.skip(identity, err)
			return
		}
		name, src := b.resolve(identity)
		b.add(identity, name, src, v)
	})
}

// AddCounter emits the counter's growth since the previous pass.
func (b *Builder) AddCounter(identity string, c domain.Counter) {
	b.guard(identity, func() {
		delta := c.Count
		if b.tracker != nil {
			delta = b.tracker.Delta(identity, c.Count)
		}
		name, src := b.resolve(identity)
		b.add(identity, name, src, float64(delta))
	})
}

// AddHistogram emits the enabled sampling statistics.
func (b *Builder) AddHistogram(identity string, s domain.Sampling) {
	b.guard(identity, func() {
		b.addExpanded(identity, b.p.Policy.Histogram(s))
	})
}

// AddMeter emits the count and enabled rates.
func (b *Builder) AddMeter(identity string, m domain.Metered) {
	b.guard(identity, func() {
		b.addExpanded(identity, b.p.Policy.Meter(m))
	})
}

// AddTimer emits converted duration statistics plus rates.
func (b *Builder) AddTimer(identity string, t domain.Timed) {
	b.guard(identity, func() {
		b.addExpanded(identity, b.p.Policy.Timer(t))
	})
}

func (b *Builder) addExpanded(identity string, items []Expanded) {
	name, src := b.resolve(identity)
	for _, it := range items {
		b.add(identity, it.Suffixed(name), src, it.Value)
	}
}

func (b *Builder) resolve(identity string) (string, string) {
	name, src, dynamic := b.p.Resolver.Resolve(identity)
	if !dynamic {
		return name, ""
	}
	clean, ok := LastPassSanitizer(src)
	if !ok {
		b.log.Warn("dropping unusable dynamic source",
			zap.String("metric", identity), zap.String("source", src))
		return name, ""
	}
	return name, clean
}

func (b *Builder) add(identity, name, source string, value float64) {
	clean, ok := b.p.Sanitize(name)
	if !ok {
		b.skip(identity, fmt.Errorf("%w: %q", domain.ErrRejectedName, name))
		return
	}
	key := seriesKey{name: clean, source: source}
	if _, dup := b.seen[key]; dup {
		b.skip(identity, fmt.Errorf("duplicate measurement %q", clean))
		return
	}
	b.seen[key] = struct{}{}

	if b.current == nil {
		b.current = make([]domain.Measurement, 0, min(b.p.MaxBatchSize, domain.DefaultBatchSize))
	}
	b.current = append(b.current, domain.Measurement{Name: clean, Value: value, Source: source})
	b.total++
	if len(b.current) >= b.p.MaxBatchSize {
		b.closeCurrent()
	}
}

func (b *Builder) closeCurrent() {
	if len(b.current) == 0 {
		return
	}
	b.batches = append(b.batches, domain.Batch{
		Source:       b.source,
		MeasureTime:  b.epoch,
		Measurements: b.current,
	})
	b.current = nil
}

func (b *Builder) skip(identity string, err error) {
	b.skipped++
	b.log.Warn("skipping measurement", zap.String("metric", identity), zap.Error(err))
}

// guard keeps a misbehaving sanitizer or metric from aborting the pass.
func (b *Builder) guard(identity string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.skip(identity, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}

// Batches closes the open batch and returns every batch built so far.
func (b *Builder) Batches() []domain.Batch {
	b.closeCurrent()
	return b.batches
}

// Measurements reports how many measurements were accepted.
func (b *Builder) Measurements() int { return b.total }

// Skipped reports how many measurements or metrics were dropped.
func (b *Builder) Skipped() int { return b.skipped }

// Post sends every non-empty batch, each under its own timeout. A failed
// batch does not stop the remaining ones.
func (b *Builder) Post(ctx context.Context, tr ports.Transport) (sent, failed int) {
	for i, batch := range b.Batches() {
		if batch.Len() == 0 {
			continue
		}
		if err := b.postOne(ctx, tr, batch); err != nil {
			failed++
			b.log.Error("batch post failed",
				zap.Int("batch", i),
				zap.Int("size", batch.Len()),
				zap.String("source", batch.Source),
				zap.Int64("measure_time", batch.MeasureTime),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent, failed
}

func (b *Builder) postOne(ctx context.Context, tr ports.Transport, batch domain.Batch) error {
	if b.p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.p.Timeout)
		defer cancel()
	}
	return tr.Post(ctx, batch)
}
