package gometrics

import (
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSource_Snapshot(t *testing.T) {
	reg := metrics.NewRegistry()

	metrics.GetOrRegisterCounter("requests", reg).Inc(5)
	metrics.GetOrRegisterGauge("goroutines", reg).Update(12)
	metrics.GetOrRegisterGaugeFloat64("load", reg).Update(0.75)

	h := metrics.GetOrRegisterHistogram("payload", reg, metrics.NewUniformSample(100))
	for i := int64(1); i <= 100; i++ {
		h.Update(i)
	}

	m := metrics.NewMeter()
	defer m.Stop()
	require.NoError(t, reg.Register("jobs", m))
	m.Mark(3)

	tm := metrics.NewTimer()
	defer tm.Stop()
	require.NoError(t, reg.Register("latency", tm))
	tm.Update(2 * time.Millisecond)
	tm.Update(4 * time.Millisecond)

	require.NoError(t, reg.Register("health", metrics.NewHealthcheck(func(metrics.Healthcheck) {})))

	snap := New(reg, nil).Snapshot()

	assert.Equal(t, int64(5), snap.Counters["requests"].Count)
	assert.Equal(t, int64(12), snap.Gauges["goroutines"].Value)
	assert.Equal(t, 0.75, snap.Gauges["load"].Value)

	hist := snap.Histograms["payload"]
	assert.Equal(t, int64(100), hist.Count)
	assert.InDelta(t, 50.5, hist.Median, 1)
	assert.InDelta(t, 99, hist.P99, 1)

	assert.Equal(t, int64(3), snap.Meters["jobs"].Count)

	timer := snap.Timers["latency"]
	assert.Equal(t, int64(2), timer.Sampling.Count)
	assert.Equal(t, int64(2), timer.Metered.Count)
	assert.InDelta(t, 3e6, timer.Sampling.Median, 1e6)

	assert.Equal(t, 6, snap.Len(), "health checks are not reported")
}

func TestSource_Filter(t *testing.T) {
	reg := metrics.NewRegistry()
	metrics.GetOrRegisterCounter("http.requests", reg).Inc(1)
	metrics.GetOrRegisterCounter("db.queries", reg).Inc(1)
	metrics.GetOrRegisterGauge("http.inflight", reg).Update(2)

	src := New(reg, regexp.MustCompile(`^http\.`))

	names := src.Names()
	slices.Sort(names)
	assert.Equal(t, []string{"http.inflight", "http.requests"}, names)

	snap := src.Snapshot()
	assert.Len(t, snap.Counters, 1)
	assert.Contains(t, snap.Counters, "http.requests")
	assert.Contains(t, snap.Gauges, "http.inflight")
}

func TestSource_NamesTrackUnregister(t *testing.T) {
	reg := metrics.NewRegistry()
	metrics.GetOrRegisterCounter("a", reg)
	metrics.GetOrRegisterCounter("b", reg)

	src := New(reg, nil)
	assert.Len(t, src.Names(), 2)

	reg.Unregister("b")
	assert.Equal(t, []string{"a"}, src.Names())
}

func TestNew_DefaultRegistry(t *testing.T) {
	assert.Same(t, metrics.DefaultRegistry, New(nil, nil).Registry())
}

func TestSource_LogsUnsupportedKinds(t *testing.T) {
	reg := metrics.NewRegistry()
	require.NoError(t, reg.Register("health", metrics.NewHealthcheck(func(metrics.Healthcheck) {})))
	metrics.GetOrRegisterCounter("requests", reg).Inc(1)

	core, logs := observer.New(zap.DebugLevel)
	snap := New(reg, nil, WithLogger(zap.New(core))).Snapshot()

	assert.Len(t, snap.Counters, 1)
	entries := logs.FilterMessage("skipping metric of unsupported kind").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "health", entries[0].ContextMap()["metric"])
}
