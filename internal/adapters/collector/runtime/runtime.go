// Package runtime samples Go runtime stats and host CPU/RAM usage into a
// go-metrics registry.
package runtime

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/ports"
)

// DefaultPrefix namespaces every registered metric.
const DefaultPrefix = "runtime"

// Collector periodically writes runtime and host readings into a registry.
type Collector struct {
	reg    metrics.Registry
	prefix string
	log    *zap.Logger

	mu        sync.Mutex
	gauges    map[string]metrics.GaugeFloat64
	pollCount metrics.Counter
	pollTime  metrics.Timer
	gcPause   metrics.Histogram
	lastNumGC uint32

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

var _ ports.MetricsCollector = (*Collector)(nil)

// New registers the collector's metrics in reg under prefix ("" means DefaultPrefix).
func New(reg metrics.Registry, prefix string, log *zap.Logger) *Collector {
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Collector{
		reg:    reg,
		prefix: prefix,
		log:    log,
		gauges: make(map[string]metrics.GaugeFloat64, len(MemStatsGauges)+2),
		stop:   make(chan struct{}),
	}
	for _, name := range MemStatsGauges {
		c.gauges[name] = metrics.GetOrRegisterGaugeFloat64(c.Name(name), reg)
	}
	c.pollCount = metrics.GetOrRegisterCounter(c.Name(MPollCount), reg)
	c.pollTime = metrics.GetOrRegisterTimer(c.Name(MPollTime), reg)
	c.gcPause = metrics.GetOrRegisterHistogram(c.Name(MGCPause), reg, metrics.NewExpDecaySample(1028, 0.015))
	return c
}

// Name returns the registry name of a collector metric.
func (c *Collector) Name(metric string) string {
	return c.prefix + "." + metric
}

// Start launches one goroutine for runtime stats and one for host stats,
// both sampling every interval until ctx ends or Stop is called.
func (c *Collector) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be > 0, got %v", interval)
	}
	started := false
	c.startOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("collector already started")
	}

	c.loop(ctx, interval, c.Poll)
	c.loop(ctx, interval, c.PollHost)
	return nil
}

func (c *Collector) loop(ctx context.Context, interval time.Duration, fn func()) {
	t := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				fn()
			}
		}
	}()
}

// Poll records one runtime sample.
func (c *Collector) Poll() {
	start := time.Now()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.set(MAlloc, float64(ms.Alloc))
	c.set(MBuckHashSys, float64(ms.BuckHashSys))
	c.set(MFrees, float64(ms.Frees))
	c.set(MGCCPUFraction, ms.GCCPUFraction)
	c.set(MGCSys, float64(ms.GCSys))
	c.set(MHeapAlloc, float64(ms.HeapAlloc))
	c.set(MHeapIdle, float64(ms.HeapIdle))
	c.set(MHeapInuse, float64(ms.HeapInuse))
	c.set(MHeapObjects, float64(ms.HeapObjects))
	c.set(MHeapReleased, float64(ms.HeapReleased))
	c.set(MHeapSys, float64(ms.HeapSys))
	c.set(MLastGC, float64(ms.LastGC))
	c.set(MLookups, float64(ms.Lookups))
	c.set(MMCacheInuse, float64(ms.MCacheInuse))
	c.set(MMCacheSys, float64(ms.MCacheSys))
	c.set(MMSpanInuse, float64(ms.MSpanInuse))
	c.set(MMSpanSys, float64(ms.MSpanSys))
	c.set(MMallocs, float64(ms.Mallocs))
	c.set(MNextGC, float64(ms.NextGC))
	c.set(MNumForcedGC, float64(ms.NumForcedGC))
	c.set(MNumGC, float64(ms.NumGC))
	c.set(MOtherSys, float64(ms.OtherSys))
	c.set(MPauseTotalNs, float64(ms.PauseTotalNs))
	c.set(MStackInuse, float64(ms.StackInuse))
	c.set(MStackSys, float64(ms.StackSys))
	c.set(MSys, float64(ms.Sys))
	c.set(MTotalAlloc, float64(ms.TotalAlloc))
	c.set(MGoroutines, float64(runtime.NumGoroutine()))

	c.recordPauses(&ms)
	c.pollCount.Inc(1)
	c.pollTime.UpdateSince(start)
}

// recordPauses feeds pauses of collections finished since the previous
// poll. MemStats keeps only the last 256.
func (c *Collector) recordPauses(ms *runtime.MemStats) {
	n := ms.NumGC - c.lastNumGC
	if n > uint32(len(ms.PauseNs)) {
		n = uint32(len(ms.PauseNs))
	}
	for i := uint32(0); i < n; i++ {
		idx := (ms.NumGC - i + 255) % uint32(len(ms.PauseNs))
		c.gcPause.Update(int64(ms.PauseNs[idx]))
	}
	c.lastNumGC = ms.NumGC
}

// PollHost records total/free memory and per-CPU utilization.
func (c *Collector) PollHost() {
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		c.set(TotalMemory, float64(vm.Total))
		c.set(FreeMemory, float64(vm.Free))
	} else if err != nil {
		c.log.Debug("host memory unavailable", zap.Error(err))
	}
	pct, err := cpu.Percent(0, true)
	if err != nil {
		c.log.Debug("host cpu unavailable", zap.Error(err))
		return
	}
	for i, p := range pct {
		c.set(fmt.Sprintf("%s%d", CPUutilization, i+1), p)
	}
}

func (c *Collector) set(metric string, v float64) {
	c.mu.Lock()
	g, ok := c.gauges[metric]
	if !ok {
		g = metrics.GetOrRegisterGaugeFloat64(c.Name(metric), c.reg)
		c.gauges[metric] = g
	}
	c.mu.Unlock()
	g.Update(v)
}

// Stop halts the sampling goroutines and waits for them.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}
