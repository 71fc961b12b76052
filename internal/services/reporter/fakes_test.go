package reporter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vshulcz/Deltaline/internal/domain"
)

type fakeSource struct {
	mu   sync.Mutex
	snap domain.Snapshot
}

func newFakeSource() *fakeSource {
	return &fakeSource{snap: domain.NewSnapshot()}
}

func (f *fakeSource) update(fn func(*domain.Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.snap)
}

func (f *fakeSource) Snapshot() domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := domain.NewSnapshot()
	for k, v := range f.snap.Gauges {
		out.Gauges[k] = v
	}
	for k, v := range f.snap.Counters {
		out.Counters[k] = v
	}
	for k, v := range f.snap.Histograms {
		out.Histograms[k] = v
	}
	for k, v := range f.snap.Meters {
		out.Meters[k] = v
	}
	for k, v := range f.snap.Timers {
		out.Timers[k] = v
	}
	return out
}

func (f *fakeSource) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Names()
}

type fakeTransport struct {
	mu        sync.Mutex
	batches   []domain.Batch
	deadlines []bool
	fail      func(n int, b domain.Batch) error
	delay     time.Duration
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	calls     int
}

func (f *fakeTransport) Post(ctx context.Context, b domain.Batch) error {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxFlight.Load()
		if cur <= prev || f.maxFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	_, hasDeadline := ctx.Deadline()
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls
	f.calls++
	f.deadlines = append(f.deadlines, hasDeadline)
	if f.fail != nil {
		if err := f.fail(n, b); err != nil {
			return err
		}
	}
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeTransport) posted() []domain.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Batch(nil), f.batches...)
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = nil
	f.deadlines = nil
	f.calls = 0
}

func flatten(batches []domain.Batch) map[string]float64 {
	out := map[string]float64{}
	for _, b := range batches {
		for _, m := range b.Measurements {
			out[m.Name] = m.Value
		}
	}
	return out
}
