package reporter

import (
	"fmt"
	"regexp"
)

// Resolver splits a raw metric name into a dynamic source and a metric
// name, and applies the configured prefix.
type Resolver struct {
	prefix      string
	delimiter   string
	pattern     *regexp.Regexp
	sourceGroup int
	nameGroup   int
}

// NewResolver validates the pattern groups. A nil pattern disables source extraction.
// With a single capture group the name is whatever the match leaves behind.
// Groups named "source" and "name" win over position; when only one of them
// is named, the other is the first remaining group.
func NewResolver(prefix, delimiter string, pattern *regexp.Regexp) (*Resolver, error) {
	r := &Resolver{prefix: prefix, delimiter: delimiter, pattern: pattern, sourceGroup: 1, nameGroup: 2}
	if pattern == nil {
		return r, nil
	}
	src, nm := pattern.SubexpIndex("source"), pattern.SubexpIndex("name")
	switch n := pattern.NumSubexp(); {
	case n == 0:
		return nil, fmt.Errorf("source pattern %q has no capture group", pattern)
	case n == 1:
		if nm > 0 {
			return nil, fmt.Errorf("source pattern %q has a name group but no source group", pattern)
		}
		r.nameGroup = 0
	case src > 0 && nm > 0:
		r.sourceGroup, r.nameGroup = src, nm
	case src > 0:
		r.sourceGroup, r.nameGroup = src, firstOther(src)
	case nm > 0:
		r.sourceGroup, r.nameGroup = firstOther(nm), nm
	}
	return r, nil
}

// firstOther returns the lowest group index other than taken.
func firstOther(taken int) int {
	if taken == 1 {
		return 2
	}
	return 1
}

// Resolve returns the prefixed metric name and, when the pattern matched,
// the extracted source.
func (r *Resolver) Resolve(raw string) (name, source string, dynamic bool) {
	name = raw
	if r.pattern != nil {
		if loc := r.pattern.FindStringSubmatchIndex(raw); loc != nil {
			source = group(raw, loc, r.sourceGroup)
			if r.nameGroup > 0 {
				name = group(raw, loc, r.nameGroup)
			} else {
				name = raw[:loc[0]] + raw[loc[1]:]
			}
			dynamic = source != "" && name != ""
			if !dynamic {
				name, source = raw, ""
			}
		}
	}
	if r.prefix != "" {
		name = r.prefix + r.delimiter + name
	}
	return name, source, dynamic
}

func group(s string, loc []int, i int) string {
	if 2*i+1 >= len(loc) || loc[2*i] < 0 {
		return ""
	}
	return s[loc[2*i]:loc[2*i+1]]
}
