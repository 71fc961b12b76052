package domain

// Gauge is an instantaneous reading. Value is whatever the registry holds;
// only numeric values are reported.
type Gauge struct {
	Value any
}

// Counter is a cumulative, monotonically increasing count.
type Counter struct {
	Count int64
}

// Sampling summarizes a sample distribution. For timers the quantiles are
// nanoseconds.
type Sampling struct {
	Count  int64
	Median float64
	P75    float64
	P95    float64
	P98    float64
	P99    float64
	P999   float64
}

// Metered carries a cumulative event count and its moving rates in events per second.
type Metered struct {
	Count    int64
	MeanRate float64
	Rate1    float64
	Rate5    float64
	Rate15   float64
}

// Timed combines a duration distribution with the rate of timed events.
type Timed struct {
	Sampling Sampling
	Metered  Metered
}

// Snapshot is a point-in-time copy of a registry partitioned by metric kind.
// Keys are metric identities and are unique across all five maps.
type Snapshot struct {
	Gauges     map[string]Gauge
	Counters   map[string]Counter
	Histograms map[string]Sampling
	Meters     map[string]Metered
	Timers     map[string]Timed
}

// NewSnapshot returns a Snapshot with every map allocated.
func NewSnapshot() Snapshot {
	return Snapshot{
		Gauges:     map[string]Gauge{},
		Counters:   map[string]Counter{},
		Histograms: map[string]Sampling{},
		Meters:     map[string]Metered{},
		Timers:     map[string]Timed{},
	}
}

// Len reports the number of metric identities in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Gauges) + len(s.Counters) + len(s.Histograms) + len(s.Meters) + len(s.Timers)
}

// Names lists every metric identity in the snapshot.
func (s Snapshot) Names() []string {
	out := make([]string, 0, s.Len())
	for k := range s.Gauges {
		out = append(out, k)
	}
	for k := range s.Counters {
		out = append(out, k)
	}
	for k := range s.Histograms {
		out = append(out, k)
	}
	for k := range s.Meters {
		out = append(out, k)
	}
	for k := range s.Timers {
		out = append(out, k)
	}
	return out
}
