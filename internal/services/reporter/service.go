// Package reporter converts registry snapshots into batches of measurements
// and ships them to a remote collector on a fixed period.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/clock"
	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/ports"
	"github.com/vshulcz/Deltaline/pkg/observer"
)

// Options carries optional collaborators.
type Options struct {
	Logger *zap.Logger
	Clock  clock.Clock
	Events observer.Publisher[domain.PassReport]
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithClock sets the clock used for measure times.
func WithClock(c clock.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithEvents publishes a PassReport after every pass.
func WithEvents(p observer.Publisher[domain.PassReport]) Option {
	return func(o *Options) { o.Events = p }
}

// Service periodically snapshots a registry and posts the resulting batches.
type Service struct {
	cfg      Config
	src      ports.MetricsSource
	tr       ports.Transport
	pipeline Pipeline
	tracker  *DeltaTracker
	clock    clock.Clock
	log      *zap.Logger
	events   observer.Publisher[domain.PassReport]

	passMu sync.Mutex
}

// New validates cfg and wires the reporter. Counter state lives in the
// returned Service and dies with it.
func New(cfg Config, src ports.MetricsSource, tr ports.Transport, opts ...Option) (*Service, error) {
	if src == nil {
		return nil, errors.New("reporter: nil metrics source")
	}
	if tr == nil {
		return nil, errors.New("reporter: nil transport")
	}
	var o Options
	for _, f := range opts {
		f(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}

	cfg = cfg.withDefaults()
	if cfg.Source != "" {
		clean, ok := LastPassSanitizer(cfg.Source)
		if !ok {
			return nil, fmt.Errorf("reporter: unusable source %q", cfg.Source)
		}
		cfg.Source = clean
	}
	res, err := NewResolver(cfg.Prefix, cfg.PrefixDelimiter, cfg.SourcePattern)
	if err != nil {
		return nil, fmt.Errorf("reporter: %w", err)
	}

	log := o.Logger.With(zap.String("reporter", cfg.Name))
	s := &Service{
		cfg: cfg,
		src: src,
		tr:  tr,
		pipeline: Pipeline{
			Resolver:     res,
			Sanitize:     chainSanitizers(cfg.Sanitizer),
			Policy:       NewPolicy(cfg.Expansion, NewConverter(cfg.RateUnit, cfg.DurationUnit)),
			MaxBatchSize: cfg.BatchSize,
			Timeout:      cfg.Timeout,
		},
		tracker: NewDeltaTracker(src.Names, o.Clock, log),
		clock:   o.Clock,
		log:     log,
		events:  o.Events,
	}
	if cfg.SeedCounters {
		s.seed()
	}
	return s, nil
}

func (s *Service) seed() {
	snap := s.src.Snapshot()
	values := make(map[string]int64, len(snap.Counters))
	for name, c := range snap.Counters {
		values[name] = c.Count
	}
	s.tracker.Seed(values)
}

// Name returns the reporter name.
func (s *Service) Name() string { return s.cfg.Name }

// Run reports every cfg.Interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("reporter: interval must be > 0, got %v", s.cfg.Interval)
	}
	s.log.Debug("reporter starting", zap.Duration("interval", s.cfg.Interval))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.cfg.FlushOnStop {
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
				s.ReportOnce(flushCtx)
				cancel()
			}
			return nil
		case <-ticker.C:
			s.ReportOnce(ctx)
		}
	}
}

// ReportOnce runs a single pass. Concurrent callers are serialized so the
// counter state only ever sees one pass at a time.
func (s *Service) ReportOnce(ctx context.Context) domain.PassReport {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := s.clock.Now()
	evicted := s.tracker.Prune()
	snap := s.src.Snapshot()

	b := NewBuilder(s.pipeline, s.tracker, s.cfg.Source, start.Unix(), s.log)
	b.AddSnapshot(snap)
	sent, failed := b.Post(ctx, s.tr)

	report := domain.PassReport{
		Reporter:      s.cfg.Name,
		MeasureTime:   start.Unix(),
		Metrics:       snap.Len(),
		Measurements:  b.Measurements(),
		Skipped:       b.Skipped(),
		BatchesSent:   sent,
		BatchesFailed: failed,
		Evicted:       evicted,
		Duration:      s.clock.Now().Sub(start),
	}
	s.log.Info("pass reported",
		zap.Int64("measure_time", report.MeasureTime),
		zap.Int("metrics", report.Metrics),
		zap.Int("measurements", report.Measurements),
		zap.Int("skipped", report.Skipped),
		zap.Int("batches_sent", sent),
		zap.Int("batches_failed", failed),
		zap.Int("evicted", evicted),
	)
	if s.events != nil {
		s.events.Publish(ctx, report)
	}
	return report
}
