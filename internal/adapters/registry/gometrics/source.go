// Package gometrics exposes a github.com/rcrowley/go-metrics registry as a
// reporter metrics source.
package gometrics

import (
	"fmt"
	"regexp"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/ports"
)

var quantiles = []float64{0.5, 0.75, 0.95, 0.98, 0.99, 0.999}

// Source snapshots a go-metrics registry.
type Source struct {
	reg    metrics.Registry
	filter *regexp.Regexp
	log    *zap.Logger
}

// Option customizes a Source.
type Option func(*Source)

// WithLogger reports metrics of unsupported kinds at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

var _ ports.MetricsSource = (*Source)(nil)

// New wraps reg; a nil reg means metrics.DefaultRegistry. When filter is
// set only matching names are visible, both to snapshots and to Names.
func New(reg metrics.Registry, filter *regexp.Regexp, opts ...Option) *Source {
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	s := &Source{reg: reg, filter: filter, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the wrapped registry.
func (s *Source) Registry() metrics.Registry { return s.reg }

func (s *Source) visible(name string) bool {
	return s.filter == nil || s.filter.MatchString(name)
}

// Snapshot copies every visible metric. Kinds the reporter does not know,
// such as health checks, are left out and logged.
func (s *Source) Snapshot() domain.Snapshot {
	out := domain.NewSnapshot()
	s.reg.Each(func(name string, m any) {
		if !s.visible(name) {
			return
		}
		switch v := m.(type) {
		case metrics.Counter:
			out.Counters[name] = domain.Counter{Count: v.Count()}
		case metrics.Gauge:
			out.Gauges[name] = domain.Gauge{Value: v.Value()}
		case metrics.GaugeFloat64:
			out.Gauges[name] = domain.Gauge{Value: v.Value()}
		case metrics.Histogram:
			out.Histograms[name] = sampling(v.Snapshot())
		case metrics.Meter:
			out.Meters[name] = metered(v.Snapshot())
		case metrics.Timer:
			t := v.Snapshot()
			out.Timers[name] = domain.Timed{Sampling: sampling(t), Metered: metered(t)}
		default:
			s.log.Debug("skipping metric of unsupported kind",
				zap.String("metric", name), zap.String("kind", fmt.Sprintf("%T", m)))
		}
	})
	return out
}

// Names lists every visible registered name.
func (s *Source) Names() []string {
	var out []string
	s.reg.Each(func(name string, _ any) {
		if s.visible(name) {
			out = append(out, name)
		}
	})
	return out
}

type sampled interface {
	Count() int64
	Percentiles([]float64) []float64
}

func sampling(h sampled) domain.Sampling {
	ps := h.Percentiles(quantiles)
	return domain.Sampling{
		Count:  h.Count(),
		Median: ps[0],
		P75:    ps[1],
		P95:    ps[2],
		P98:    ps[3],
		P99:    ps[4],
		P999:   ps[5],
	}
}

type rated interface {
	Count() int64
	Rate1() float64
	Rate5() float64
	Rate15() float64
	RateMean() float64
}

func metered(m rated) domain.Metered {
	return domain.Metered{
		Count:    m.Count(),
		MeanRate: m.RateMean(),
		Rate1:    m.Rate1(),
		Rate5:    m.Rate5(),
		Rate15:   m.Rate15(),
	}
}
