package misc

import "sync"

// Resetter is implemented by values that can be cleared for reuse.
type Resetter interface {
	Reset()
}

// Pool is a typed sync.Pool that resets values on Put. Values for which
// discard returns true are dropped instead of pooled.
type Pool[T Resetter] struct {
	p       sync.Pool
	discard func(T) bool
}

// NewPool creates a Pool that allocates with newFn.
func NewPool[T Resetter](newFn func() T) *Pool[T] {
	pl := &Pool[T]{}
	pl.p.New = func() any {
		if newFn != nil {
			return newFn()
		}
		var zero T
		return zero
	}
	return pl
}

// WithDiscard sets a predicate for values too costly to keep, such as
// oversized buffers.
func (pl *Pool[T]) WithDiscard(fn func(T) bool) *Pool[T] {
	pl.discard = fn
	return pl
}

// Get returns a pooled value or a fresh one.
func (pl *Pool[T]) Get() T {
	if v, ok := pl.p.Get().(T); ok {
		return v
	}
	var zero T
	return zero
}

// Put resets v and returns it to the pool.
func (pl *Pool[T]) Put(v T) {
	if pl.discard != nil && pl.discard(v) {
		return
	}
	v.Reset()
	pl.p.Put(v)
}
