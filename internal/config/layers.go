package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/vshulcz/Deltaline/internal/misc"
)

// option binds a config key to its environment variable. The flag name is
// the key with underscores turned into dashes.
type option struct {
	key string
	env string
}

func (o option) flag() string { return strings.ReplaceAll(o.key, "_", "-") }

// layers resolves options with precedence ENV > CLI > file > default.
type layers struct {
	fs   *pflag.FlagSet
	file map[string]string
}

func (l layers) raw(o option) (string, bool) {
	if v, ok := misc.Lookup(o.env); ok {
		return v, true
	}
	if f := l.fs.Lookup(o.flag()); f != nil && f.Changed {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			return strings.Join(sv.GetSlice(), ","), true
		}
		return f.Value.String(), true
	}
	if v := strings.TrimSpace(l.file[o.key]); v != "" {
		return v, true
	}
	return "", false
}

func (l layers) str(o option, def string) string {
	if v, ok := l.raw(o); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (l layers) list(o option, def []string) []string {
	if v, ok := l.raw(o); ok {
		return misc.SplitList(strings.Trim(v, "[]"))
	}
	return def
}

func (l layers) duration(o option, def time.Duration) (time.Duration, error) {
	v, ok := l.raw(o)
	if !ok {
		return def, nil
	}
	d, ok := misc.ParseDuration(v)
	if !ok {
		return 0, fmt.Errorf("%s: invalid duration %q", o.key, v)
	}
	return d, nil
}

func (l layers) integer(o option, def int) (int, error) {
	v, ok := l.raw(o)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", o.key, v)
	}
	return n, nil
}

func (l layers) boolean(o option, def bool) (bool, error) {
	v, ok := l.raw(o)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", o.key, v)
	}
	return b, nil
}

var unitWords = map[string]time.Duration{
	"ns": time.Nanosecond, "nanosecond": time.Nanosecond, "nanoseconds": time.Nanosecond,
	"us": time.Microsecond, "microsecond": time.Microsecond, "microseconds": time.Microsecond,
	"ms": time.Millisecond, "millisecond": time.Millisecond, "milliseconds": time.Millisecond,
	"s": time.Second, "second": time.Second, "seconds": time.Second,
	"minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
}

// unit accepts a unit word ("second", "ms") or a positive Go duration ("1m").
func (l layers) unit(o option, def time.Duration) (time.Duration, error) {
	v, ok := l.raw(o)
	if !ok {
		return def, nil
	}
	if d, ok := unitWords[strings.ToLower(v)]; ok {
		return d, nil
	}
	d, ok := misc.ParseDuration(v)
	if !ok || d <= 0 {
		return 0, fmt.Errorf("%s: invalid time unit %q", o.key, v)
	}
	return d, nil
}

func newFlagSet(name string, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SortFlags = false
	return fs
}

// configPath resolves the config file location before the other options.
func configPath(fs *pflag.FlagSet) string {
	if v, ok := misc.Lookup("CONFIG"); ok {
		return v
	}
	p, _ := fs.GetString("config")
	return strings.TrimSpace(p)
}
