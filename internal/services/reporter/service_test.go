package reporter

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshulcz/Deltaline/internal/clock"
	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/pkg/observer"
)

func newTestService(t *testing.T, cfg Config, src *fakeSource, tr *fakeTransport, opts ...Option) *Service {
	t.Helper()
	svc, err := New(cfg, src, tr, opts...)
	require.NoError(t, err)
	return svc
}

func TestService_ReportOnce_EndToEnd(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.update(func(s *domain.Snapshot) {
		s.Counters["requests"] = domain.Counter{Count: 5}
		s.Gauges["load"] = domain.Gauge{Value: 3.0}
	})
	tr := &fakeTransport{}
	clk := clock.NewFake(time.Unix(1700000000, 0))
	svc := newTestService(t, Config{Source: "web-1"}, src, tr, WithClock(clk))

	report := svc.ReportOnce(context.Background())
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Metrics)
	assert.Equal(t, 2, report.Measurements)
	assert.Equal(t, 1, report.BatchesSent)

	posted := tr.posted()
	require.Len(t, posted, 1)
	assert.Equal(t, "web-1", posted[0].Source)
	assert.Equal(t, int64(1700000000), posted[0].MeasureTime)
	assert.Equal(t, map[string]float64{"load": 3.0, "requests": 5}, flatten(posted))

	tr.reset()
	clk.Advance(10 * time.Second)
	src.update(func(s *domain.Snapshot) {
		s.Counters["requests"] = domain.Counter{Count: 12}
	})
	svc.ReportOnce(context.Background())

	posted = tr.posted()
	require.Len(t, posted, 1)
	assert.Equal(t, int64(1700000010), posted[0].MeasureTime)
	assert.Equal(t, 7.0, flatten(posted)["requests"])
}

func TestService_CounterEvictedAndReregistered(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.update(func(s *domain.Snapshot) { s.Counters["jobs"] = domain.Counter{Count: 10} })
	tr := &fakeTransport{}
	svc := newTestService(t, Config{}, src, tr)

	svc.ReportOnce(context.Background())

	src.update(func(s *domain.Snapshot) { delete(s.Counters, "jobs") })
	report := svc.ReportOnce(context.Background())
	assert.Equal(t, 1, report.Evicted)
	assert.Zero(t, report.Measurements)

	tr.reset()
	src.update(func(s *domain.Snapshot) { s.Counters["jobs"] = domain.Counter{Count: 4} })
	svc.ReportOnce(context.Background())
	assert.Equal(t, 4.0, flatten(tr.posted())["jobs"])
}

func TestService_SeedCounters(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.update(func(s *domain.Snapshot) { s.Counters["jobs"] = domain.Counter{Count: 100} })
	tr := &fakeTransport{}
	svc := newTestService(t, Config{SeedCounters: true}, src, tr)

	src.update(func(s *domain.Snapshot) { s.Counters["jobs"] = domain.Counter{Count: 103} })
	svc.ReportOnce(context.Background())
	assert.Equal(t, 3.0, flatten(tr.posted())["jobs"])
}

func TestService_PrefixAndSourcePattern(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.update(func(s *domain.Snapshot) {
		s.Gauges["db-2.connections"] = domain.Gauge{Value: 12}
	})
	tr := &fakeTransport{}
	svc := newTestService(t, Config{
		Prefix:        "prod",
		SourcePattern: regexp.MustCompile(`^([^.]+)\.(.+)$`),
	}, src, tr)

	svc.ReportOnce(context.Background())
	posted := tr.posted()
	require.Len(t, posted, 1)
	assert.Equal(t, []domain.Measurement{{Name: "prod.connections", Value: 12, Source: "db-2"}}, posted[0].Measurements)
}

func TestService_PublishesPassReport(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var reports []domain.PassReport
	events := observer.NewSubject[domain.PassReport](observer.ObserverFunc[domain.PassReport](
		func(_ context.Context, r domain.PassReport) error {
			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, r)
			return nil
		}))

	src := newFakeSource()
	src.update(func(s *domain.Snapshot) { s.Gauges["up"] = domain.Gauge{Value: 1} })
	svc := newTestService(t, Config{Name: "edge"}, src, &fakeTransport{}, WithEvents(events))

	svc.ReportOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 1)
	assert.Equal(t, "edge", reports[0].Reporter)
	assert.Equal(t, 1, reports[0].Measurements)
	assert.Equal(t, "edge", svc.Name())
}

func TestService_ConcurrentPassesAreSerialized(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.update(func(s *domain.Snapshot) { s.Counters["hits"] = domain.Counter{Count: 1} })
	tr := &fakeTransport{delay: 5 * time.Millisecond}
	svc := newTestService(t, Config{}, src, tr)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ReportOnce(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), tr.maxFlight.Load())
	var total float64
	for _, b := range tr.posted() {
		for _, m := range b.Measurements {
			total += m.Value
		}
	}
	assert.Equal(t, 1.0, total, "cumulative value is reported exactly once")
}

func TestService_RunFlushesOnStop(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.update(func(s *domain.Snapshot) { s.Gauges["up"] = domain.Gauge{Value: 1} })
	tr := &fakeTransport{}
	svc := newTestService(t, Config{Interval: time.Hour, FlushOnStop: true}, src, tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Len(t, tr.posted(), 1)
}

func TestService_RunTicks(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.update(func(s *domain.Snapshot) { s.Gauges["up"] = domain.Gauge{Value: 1} })
	tr := &fakeTransport{}
	svc := newTestService(t, Config{Interval: 10 * time.Millisecond}, src, tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(tr.posted()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestService_RunRejectsZeroInterval(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, Config{}, newFakeSource(), &fakeTransport{})
	require.Error(t, svc.Run(context.Background()))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, &fakeTransport{})
	require.Error(t, err)

	_, err = New(Config{}, newFakeSource(), nil)
	require.Error(t, err)

	_, err = New(Config{Source: "   "}, newFakeSource(), &fakeTransport{})
	require.Error(t, err)

	_, err = New(Config{SourcePattern: regexp.MustCompile(`^host`)}, newFakeSource(), &fakeTransport{})
	require.Error(t, err)

	svc, err := New(Config{Source: "web 1"}, newFakeSource(), &fakeTransport{})
	require.NoError(t, err)
	assert.Equal(t, "web1", svc.cfg.Source)
	assert.Equal(t, domain.DefaultBatchSize, svc.cfg.BatchSize)
}
