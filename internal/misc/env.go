package misc

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Lookup returns the trimmed value of key and whether it was set to something non-blank.
func Lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func Getenv(key, def string) string {
	if v, ok := Lookup(key); ok {
		return v
	}
	return def
}

// GetDuration accepts either a Go duration ("250ms") or a bare number of seconds.
func GetDuration(key string, def time.Duration) time.Duration {
	v, ok := Lookup(key)
	if !ok {
		return def
	}
	if d, ok := ParseDuration(v); ok {
		return d
	}
	return def
}

// ParseDuration is the parser behind GetDuration. Non-positive values map to 0.
func ParseDuration(v string) (time.Duration, bool) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n <= 0 {
			return 0, true
		}
		return time.Duration(n) * time.Second, true
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d <= 0 {
			return 0, true
		}
		return d, true
	}
	return 0, false
}

func GetBool(key string, def bool) bool {
	v, ok := Lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y":
		return true
	case "0", "false", "f", "no", "n":
		return false
	default:
		return def
	}
}

func GetInt(key string, def int) int {
	v, ok := Lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetList splits a comma separated variable, dropping blank items.
func GetList(key string, def []string) []string {
	v, ok := Lookup(key)
	if !ok {
		return def
	}
	return SplitList(v)
}

// SplitList splits on commas and trims every item.
func SplitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
