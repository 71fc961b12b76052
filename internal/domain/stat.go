package domain

import "fmt"

// Stat names a derived statistic emitted for histograms, meters and timers.
type Stat uint8

const (
	StatMedian Stat = iota
	StatP75
	StatP95
	StatP98
	StatP99
	StatP999
	StatCount
	StatMeanRate
	StatRate1
	StatRate5
	StatRate15

	statEnd
)

var statLabels = [...]string{
	StatMedian:   "median",
	StatP75:      "75th",
	StatP95:      "95th",
	StatP98:      "98th",
	StatP99:      "99th",
	StatP999:     "999th",
	StatCount:    "count",
	StatMeanRate: "meanRate",
	StatRate1:    "1MinuteRate",
	StatRate5:    "5MinuteRate",
	StatRate15:   "15MinuteRate",
}

// AllStats lists every statistic in emission order.
func AllStats() []Stat {
	out := make([]Stat, 0, int(statEnd))
	for s := Stat(0); s < statEnd; s++ {
		out = append(out, s)
	}
	return out
}

// Label is the suffix used when the statistic is appended to a metric name.
func (s Stat) Label() string {
	if s >= statEnd {
		return fmt.Sprintf("stat(%d)", uint8(s))
	}
	return statLabels[s]
}

func (s Stat) String() string {
	return s.Label()
}

// Suffixed builds "<name>.<label>".
func (s Stat) Suffixed(name string) string {
	return name + "." + s.Label()
}

// ParseStat maps a label back to its Stat.
func ParseStat(label string) (Stat, error) {
	for s := Stat(0); s < statEnd; s++ {
		if statLabels[s] == label {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown statistic %q", label)
}
