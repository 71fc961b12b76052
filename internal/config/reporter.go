package config

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/vshulcz/Deltaline/internal/misc"
)

const (
	defaultCollectorAddr   = "http://localhost:8080"
	defaultReportInterval  = 10 * time.Second
	defaultPollInterval    = 2 * time.Second
	defaultTimeout         = 5 * time.Second
	defaultBatchSize       = 500
	defaultPrefixDelimiter = "."
	defaultLogLevel        = "info"
)

var (
	optAddress         = option{"address", "ADDRESS"}
	optUser            = option{"user", "COLLECTOR_USER"}
	optToken           = option{"token", "COLLECTOR_TOKEN"}
	optKey             = option{"key", "KEY"}
	optSource          = option{"source", "SOURCE"}
	optSourceRegex     = option{"source_regex", "SOURCE_REGEX"}
	optPrefix          = option{"prefix", "PREFIX"}
	optPrefixDelimiter = option{"prefix_delimiter", "PREFIX_DELIMITER"}
	optRateUnit        = option{"rate_unit", "RATE_UNIT"}
	optDurationUnit    = option{"duration_unit", "DURATION_UNIT"}
	optExpansion       = option{"expansion", "EXPANSION"}
	optTimeout         = option{"timeout", "TIMEOUT"}
	optBatchSize       = option{"batch_size", "BATCH_SIZE"}
	optReportInterval  = option{"report_interval", "REPORT_INTERVAL"}
	optPollInterval    = option{"poll_interval", "POLL_INTERVAL"}
	optFilter          = option{"filter", "FILTER"}
	optFlushOnStop     = option{"flush_on_stop", "FLUSH_ON_STOP"}
	optSeedCounters    = option{"seed_counters", "SEED_COUNTERS"}
	optRetry           = option{"retry", "RETRY"}
	optAuditFile       = option{"audit_file", "AUDIT_FILE"}
	optAuditURL        = option{"audit_url", "AUDIT_URL"}
	optLogLevel        = option{"log_level", "LOG_LEVEL"}
)

// ReporterConfig is the resolved configuration of cmd/reporter.
type ReporterConfig struct {
	Address         string
	User            string
	Token           string
	Key             string
	Source          string
	SourcePattern   *regexp.Regexp
	Prefix          string
	PrefixDelimiter string
	RateUnit        time.Duration
	DurationUnit    time.Duration
	Expansion       []string
	Timeout         time.Duration
	BatchSize       int
	ReportInterval  time.Duration
	PollInterval    time.Duration
	Filter          *regexp.Regexp
	FlushOnStop     bool
	SeedCounters    bool
	Retry           []time.Duration
	AuditFile       string
	AuditURL        string
	LogLevel        string
}

// LoadReporterConfig resolves options with precedence ENV > CLI > config file > defaults.
func LoadReporterConfig(args []string, out io.Writer) (ReporterConfig, error) {
	if out == nil {
		out = io.Discard
	}
	fs := newFlagSet("reporter", out)
	fs.StringP("config", "c", "", "path to a YAML or JSONC config file")
	fs.StringP(optAddress.flag(), "a", "", fmt.Sprintf("collector address (host:port or URL), default: %s", defaultCollectorAddr))
	fs.StringP(optUser.flag(), "u", "", "collector basic auth user")
	fs.StringP(optToken.flag(), "t", "", "collector basic auth token")
	fs.StringP(optKey.flag(), "k", "", "secret key for the HashSHA256 header")
	fs.StringP(optSource.flag(), "s", "", "static source of every batch")
	fs.String(optSourceRegex.flag(), "", "regexp extracting a per-metric source from names")
	fs.String(optPrefix.flag(), "", "prefix prepended to every measurement name")
	fs.String(optPrefixDelimiter.flag(), defaultPrefixDelimiter, "delimiter between prefix and name")
	fs.String(optRateUnit.flag(), "second", "time unit of reported rates")
	fs.String(optDurationUnit.flag(), "millisecond", "time unit of reported timer durations")
	fs.StringSlice(optExpansion.flag(), nil, "statistics to report for histograms, meters and timers (default all)")
	fs.Duration(optTimeout.flag(), defaultTimeout, "timeout of each batch post")
	fs.Int(optBatchSize.flag(), defaultBatchSize, "max measurements per batch")
	fs.DurationP(optReportInterval.flag(), "r", defaultReportInterval, "report interval")
	fs.DurationP(optPollInterval.flag(), "p", defaultPollInterval, "runtime poll interval")
	fs.String(optFilter.flag(), "", "regexp selecting which registry metrics are reported")
	fs.Bool(optFlushOnStop.flag(), false, "report once more on shutdown")
	fs.Bool(optSeedCounters.flag(), false, "report only counter growth since start")
	fs.StringSlice(optRetry.flag(), nil, "retry delays for transient collector errors, e.g. 1s,3s")
	fs.String(optAuditFile.flag(), "", "append a JSON line per pass to this file")
	fs.String(optAuditURL.flag(), "", "POST a JSON pass report to this webhook")
	fs.String(optLogLevel.flag(), defaultLogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return ReporterConfig{}, err
	}
	file, err := loadFile(configPath(fs))
	if err != nil {
		return ReporterConfig{}, err
	}
	l := layers{fs: fs, file: file}

	cfg := ReporterConfig{
		Address:         normalizeAddressURL(l.str(optAddress, defaultCollectorAddr)),
		User:            l.str(optUser, ""),
		Token:           l.str(optToken, ""),
		Key:             l.str(optKey, ""),
		Source:          l.str(optSource, ""),
		Prefix:          l.str(optPrefix, ""),
		PrefixDelimiter: l.str(optPrefixDelimiter, defaultPrefixDelimiter),
		Expansion:       l.list(optExpansion, nil),
		AuditFile:       l.str(optAuditFile, ""),
		AuditURL:        l.str(optAuditURL, ""),
		LogLevel:        l.str(optLogLevel, defaultLogLevel),
	}
	if _, err := url.ParseRequestURI(cfg.Address); err != nil {
		return ReporterConfig{}, fmt.Errorf("invalid collector address: %q", cfg.Address)
	}

	if cfg.AuditURL != "" {
		if _, err := url.ParseRequestURI(cfg.AuditURL); err != nil {
			return ReporterConfig{}, fmt.Errorf("invalid audit url: %q", cfg.AuditURL)
		}
	}

	if cfg.SourcePattern, err = compileOptional(optSourceRegex, l.str(optSourceRegex, "")); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.Filter, err = compileOptional(optFilter, l.str(optFilter, "")); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.RateUnit, err = l.unit(optRateUnit, time.Second); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.DurationUnit, err = l.unit(optDurationUnit, time.Millisecond); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.Timeout, err = l.duration(optTimeout, defaultTimeout); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.ReportInterval, err = l.duration(optReportInterval, defaultReportInterval); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.PollInterval, err = l.duration(optPollInterval, defaultPollInterval); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.BatchSize, err = l.integer(optBatchSize, defaultBatchSize); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.FlushOnStop, err = l.boolean(optFlushOnStop, false); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.SeedCounters, err = l.boolean(optSeedCounters, false); err != nil {
		return ReporterConfig{}, err
	}
	if items := l.list(optRetry, nil); len(items) > 0 {
		var ok bool
		if cfg.Retry, ok = misc.ParseBackoff(items); !ok {
			return ReporterConfig{}, fmt.Errorf("retry: invalid delays %v", items)
		}
	}

	switch {
	case cfg.ReportInterval <= 0:
		return ReporterConfig{}, fmt.Errorf("report interval must be > 0, got %v", cfg.ReportInterval)
	case cfg.PollInterval <= 0:
		return ReporterConfig{}, fmt.Errorf("poll interval must be > 0, got %v", cfg.PollInterval)
	case cfg.Timeout <= 0:
		return ReporterConfig{}, fmt.Errorf("timeout must be > 0, got %v", cfg.Timeout)
	case cfg.BatchSize <= 0:
		return ReporterConfig{}, fmt.Errorf("batch size must be > 0, got %d", cfg.BatchSize)
	}
	return cfg, nil
}

func compileOptional(o option, expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.key, err)
	}
	return re, nil
}

func normalizeAddressURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultCollectorAddr
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if strings.HasPrefix(s, ":") {
		return "http://localhost" + s
	}
	return "http://" + s
}
