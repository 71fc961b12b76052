package reporter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vshulcz/Deltaline/internal/domain"
)

// ExpansionConfig is an immutable set of enabled statistics. The zero value
// is "unset" and is replaced by AllExpansions when a Service is built.
type ExpansionConfig struct {
	mask uint16
	set  bool
}

// NewExpansionConfig enables exactly the given statistics.
func NewExpansionConfig(stats ...domain.Stat) ExpansionConfig {
	c := ExpansionConfig{set: true}
	for _, s := range stats {
		c.mask |= 1 << s
	}
	return c
}

// AllExpansions enables every statistic.
func AllExpansions() ExpansionConfig {
	return NewExpansionConfig(domain.AllStats()...)
}

// ParseExpansion builds a config from statistic labels such as "median" or "1MinuteRate".
// The single label "all" enables everything; "none" disables everything.
func ParseExpansion(labels []string) (ExpansionConfig, error) {
	stats := make([]domain.Stat, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		switch l {
		case "":
			continue
		case "all":
			return AllExpansions(), nil
		case "none":
			return NewExpansionConfig(), nil
		}
		s, err := domain.ParseStat(l)
		if err != nil {
			return ExpansionConfig{}, err
		}
		stats = append(stats, s)
	}
	return NewExpansionConfig(stats...), nil
}

// IsSet reports whether the config was explicitly built.
func (c ExpansionConfig) IsSet() bool { return c.set }

// Enabled reports whether s is emitted.
func (c ExpansionConfig) Enabled(s domain.Stat) bool {
	return c.mask&(1<<s) != 0
}

// Stats lists the enabled statistics in emission order.
func (c ExpansionConfig) Stats() []domain.Stat {
	var out []domain.Stat
	for _, s := range domain.AllStats() {
		if c.Enabled(s) {
			out = append(out, s)
		}
	}
	return out
}

// Converter scales rates and durations into the configured units.
type Converter struct {
	rateFactor     float64
	durationFactor float64
}

// NewConverter converts events/second into events per rateUnit and
// nanoseconds into durationUnit.
func NewConverter(rateUnit, durationUnit time.Duration) Converter {
	if rateUnit <= 0 {
		rateUnit = time.Second
	}
	if durationUnit <= 0 {
		durationUnit = time.Millisecond
	}
	return Converter{
		rateFactor:     rateUnit.Seconds(),
		durationFactor: 1 / float64(durationUnit.Nanoseconds()),
	}
}

// Rate converts an events/second rate.
func (c Converter) Rate(r float64) float64 { return r * c.rateFactor }

// Duration converts a nanosecond value.
func (c Converter) Duration(ns float64) float64 { return ns * c.durationFactor }

// Expanded is one derived statistic of a composite metric.
type Expanded struct {
	Stat  domain.Stat
	Value float64
}

// Suffixed returns "<name>.<label>" for the statistic.
func (e Expanded) Suffixed(name string) string {
	return e.Stat.Suffixed(name)
}

// Policy decides which sub-measurements a composite metric yields.
type Policy struct {
	cfg  ExpansionConfig
	conv Converter
}

// NewPolicy binds an expansion config to unit conversions.
func NewPolicy(cfg ExpansionConfig, conv Converter) Policy {
	return Policy{cfg: cfg, conv: conv}
}

type statValues struct {
	has uint16
	v   [16]float64
}

func (sv *statValues) set(s domain.Stat, v float64) {
	sv.has |= 1 << s
	sv.v[s] = v
}

func (sv *statValues) sampling(s domain.Sampling, conv func(float64) float64) {
	sv.set(domain.StatMedian, conv(s.Median))
	sv.set(domain.StatP75, conv(s.P75))
	sv.set(domain.StatP95, conv(s.P95))
	sv.set(domain.StatP98, conv(s.P98))
	sv.set(domain.StatP99, conv(s.P99))
	sv.set(domain.StatP999, conv(s.P999))
	sv.set(domain.StatCount, float64(s.Count))
}

func (sv *statValues) metered(m domain.Metered, conv func(float64) float64) {
	sv.set(domain.StatCount, float64(m.Count))
	sv.set(domain.StatMeanRate, conv(m.MeanRate))
	sv.set(domain.StatRate1, conv(m.Rate1))
	sv.set(domain.StatRate5, conv(m.Rate5))
	sv.set(domain.StatRate15, conv(m.Rate15))
}

func (p Policy) emit(sv *statValues) []Expanded {
	out := make([]Expanded, 0, 11)
	for _, s := range domain.AllStats() {
		if sv.has&(1<<s) == 0 || !p.cfg.Enabled(s) {
			continue
		}
		out = append(out, Expanded{Stat: s, Value: sv.v[s]})
	}
	return out
}

func identity(v float64) float64 { return v }

// Histogram yields enabled quantiles plus the sample count.
func (p Policy) Histogram(s domain.Sampling) []Expanded {
	var sv statValues
	sv.sampling(s, identity)
	return p.emit(&sv)
}

// Meter yields the event count plus enabled rates in the configured rate unit.
func (p Policy) Meter(m domain.Metered) []Expanded {
	var sv statValues
	sv.metered(m, p.conv.Rate)
	return p.emit(&sv)
}

// Timer yields duration quantiles in the configured duration unit plus meter statistics.
func (p Policy) Timer(t domain.Timed) []Expanded {
	var sv statValues
	sv.sampling(t.Sampling, p.conv.Duration)
	sv.metered(t.Metered, p.conv.Rate)
	return p.emit(&sv)
}

type floater interface {
	Float64() (float64, error)
}

// GaugeValue coerces a gauge reading to float64. Non-numeric values,
// including NaN and infinities, yield domain.ErrNonNumeric.
func GaugeValue(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case floater:
		n, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrNonNumeric, err)
		}
		f = n
	default:
		return 0, fmt.Errorf("%w: %T", domain.ErrNonNumeric, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", domain.ErrNonNumeric, f)
	}
	return f, nil
}
