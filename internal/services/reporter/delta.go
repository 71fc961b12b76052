package reporter

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/clock"
)

type observation struct {
	value int64
	at    time.Time
}

// DeltaTracker turns cumulative counter readings into per-pass deltas.
//
// The first observation of an identity reports the full cumulative value.
// A reading lower than the previous one is treated as a counter restarted
// from zero, so the new reading itself is the delta. Deltas are never negative.
type DeltaTracker struct {
	mu       sync.Mutex
	last     map[string]observation
	supplier func() []string
	clock    clock.Clock
	log      *zap.Logger
}

// NewDeltaTracker creates an empty tracker. supplier returns the identities
// currently registered and drives eviction in Prune; nil disables eviction.
func NewDeltaTracker(supplier func() []string, clk clock.Clock, log *zap.Logger) *DeltaTracker {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DeltaTracker{
		last:     make(map[string]observation),
		supplier: supplier,
		clock:    clk,
		log:      log,
	}
}

// Seed records initial readings without emitting anything, so the first
// Delta for a seeded identity only covers growth since seeding.
func (t *DeltaTracker) Seed(values map[string]int64) {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, v := range values {
		t.last[name] = observation{value: v, at: now}
	}
}

// Delta records current for identity and returns the growth since the previous observation.
func (t *DeltaTracker) Delta(identity string, current int64) int64 {
	now := t.clock.Now()
	t.mu.Lock()
	prev, ok := t.last[identity]
	t.last[identity] = observation{value: current, at: now}
	t.mu.Unlock()

	switch {
	case !ok:
		return nonNegative(current)
	case current < prev.value:
		t.log.Info("counter went backwards, assuming reset",
			zap.String("metric", identity),
			zap.Int64("previous", prev.value),
			zap.Int64("current", current),
			zap.Time("previous_at", prev.at),
		)
		return nonNegative(current)
	default:
		return current - prev.value
	}
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// Prune evicts every tracked identity the supplier no longer reports and
// returns how many were dropped.
func (t *DeltaTracker) Prune() int {
	if t.supplier == nil {
		return 0
	}
	names := t.supplier()
	present := make(map[string]struct{}, len(names))
	for _, n := range names {
		present[n] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for name := range t.last {
		if _, ok := present[name]; !ok {
			delete(t.last, name)
			evicted++
		}
	}
	return evicted
}

// Len reports how many identities are tracked.
func (t *DeltaTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// Last returns the most recent reading recorded for identity.
func (t *DeltaTracker) Last(identity string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.last[identity]
	return o.value, ok
}
