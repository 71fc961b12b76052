package misc

import (
	"context"
	"time"
)

// DefaultBackoff is the schedule used when a component opts in to retries
// without choosing its own delays.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// Retry runs op, then once more after each delay while isRetryable accepts
// the error. It stops early when ctx is done. A nil delays slice means a
// single attempt.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error) error {
	var err error
	for i := 0; ; i++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= len(delays) || isRetryable == nil || !isRetryable(err) {
			return err
		}
		if werr := sleepCtx(ctx, delays[i]); werr != nil {
			return werr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ParseBackoff turns a list like ["1s", "3s"] into a delay schedule.
func ParseBackoff(items []string) ([]time.Duration, bool) {
	out := make([]time.Duration, 0, len(items))
	for _, it := range items {
		d, ok := ParseDuration(it)
		if !ok || d <= 0 {
			return nil, false
		}
		out = append(out, d)
	}
	return out, true
}
