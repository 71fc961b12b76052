package runtime

// Gauge names fed from runtime.MemStats, relative to the collector prefix.
const (
	MAlloc         = "Alloc"
	MBuckHashSys   = "BuckHashSys"
	MFrees         = "Frees"
	MGCCPUFraction = "GCCPUFraction"
	MGCSys         = "GCSys"
	MHeapAlloc     = "HeapAlloc"
	MHeapIdle      = "HeapIdle"
	MHeapInuse     = "HeapInuse"
	MHeapObjects   = "HeapObjects"
	MHeapReleased  = "HeapReleased"
	MHeapSys       = "HeapSys"
	MLastGC        = "LastGC"
	MLookups       = "Lookups"
	MMCacheInuse   = "MCacheInuse"
	MMCacheSys     = "MCacheSys"
	MMSpanInuse    = "MSpanInuse"
	MMSpanSys      = "MSpanSys"
	MMallocs       = "Mallocs"
	MNextGC        = "NextGC"
	MNumForcedGC   = "NumForcedGC"
	MNumGC         = "NumGC"
	MOtherSys      = "OtherSys"
	MPauseTotalNs  = "PauseTotalNs"
	MStackInuse    = "StackInuse"
	MStackSys      = "StackSys"
	MSys           = "Sys"
	MTotalAlloc    = "TotalAlloc"
	MGoroutines    = "NumGoroutine"
)

// Non-gauge metrics and host gauges.
const (
	MPollCount     = "PollCount"
	MPollTime      = "PollTime"
	MGCPause       = "GCPauseNs"
	TotalMemory    = "TotalMemory"
	FreeMemory     = "FreeMemory"
	CPUutilization = "CPUutilization"
)

// MemStatsGauges lists every MemStats-derived gauge in registration order.
var MemStatsGauges = []string{
	MAlloc, MBuckHashSys, MFrees, MGCCPUFraction, MGCSys,
	MHeapAlloc, MHeapIdle, MHeapInuse, MHeapObjects, MHeapReleased,
	MHeapSys, MLastGC, MLookups, MMCacheInuse, MMCacheSys,
	MMSpanInuse, MMSpanSys, MMallocs, MNextGC, MNumForcedGC,
	MNumGC, MOtherSys, MPauseTotalNs, MStackInuse, MStackSys,
	MSys, MTotalAlloc, MGoroutines,
}
