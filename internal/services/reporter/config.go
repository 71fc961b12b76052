package reporter

import (
	"regexp"
	"time"

	"github.com/vshulcz/Deltaline/internal/domain"
)

const (
	defaultName            = "deltaline-reporter"
	defaultPrefixDelimiter = "."
	defaultTimeout         = 5 * time.Second
	defaultRateUnit        = time.Second
	defaultDurationUnit    = time.Millisecond
)

// Config holds every reporter setting. Zero fields take the defaults listed
// on each field.
type Config struct {
	// Name identifies the reporter in logs and pass reports. Default "deltaline-reporter".
	Name string
	// Source is the static source label of every batch.
	Source string
	// SourcePattern extracts a per-measurement source from metric names.
	SourcePattern *regexp.Regexp
	// Prefix is prepended to every name as Prefix+PrefixDelimiter+name.
	Prefix string
	// PrefixDelimiter defaults to ".".
	PrefixDelimiter string
	// Sanitizer runs before the mandatory last-pass sanitizer. Default no-op.
	Sanitizer Sanitizer
	// RateUnit is the time unit rates are expressed in. Default one second.
	RateUnit time.Duration
	// DurationUnit is the time unit timer durations are expressed in. Default one millisecond.
	DurationUnit time.Duration
	// Expansion selects derived statistics. Default all.
	Expansion ExpansionConfig
	// Timeout bounds each batch post. Default 5s.
	Timeout time.Duration
	// BatchSize caps measurements per batch. Default domain.DefaultBatchSize.
	BatchSize int
	// Interval is the reporting period used by Run.
	Interval time.Duration
	// FlushOnStop runs one last pass when Run's context ends.
	FlushOnStop bool
	// SeedCounters records current counter values at construction so the
	// first pass reports only growth since then.
	SeedCounters bool
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.Prefix != "" && c.PrefixDelimiter == "" {
		c.PrefixDelimiter = defaultPrefixDelimiter
	}
	if c.Sanitizer == nil {
		c.Sanitizer = NoOpSanitizer
	}
	if c.RateUnit <= 0 {
		c.RateUnit = defaultRateUnit
	}
	if c.DurationUnit <= 0 {
		c.DurationUnit = defaultDurationUnit
	}
	if !c.Expansion.IsSet() {
		c.Expansion = AllExpansions()
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = domain.DefaultBatchSize
	}
	return c
}
