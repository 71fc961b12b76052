// Package memory implements an in-memory points repository.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/ports"
)

// DefaultRetention is how many points are kept per measurement name.
const DefaultRetention = 1024

// Repo keeps the most recent points of every name with coarse-grained RW locking.
type Repo struct {
	mu        sync.RWMutex
	series    map[string][]domain.Point
	retention int
}

var _ ports.PointsRepo = (*Repo)(nil)

// New returns an empty repository keeping at most retention points per
// name; retention <= 0 means DefaultRetention.
func New(retention int) *Repo {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Repo{series: make(map[string][]domain.Point), retention: retention}
}

// Append stores points in arrival order, dropping the oldest beyond retention.
func (r *Repo) Append(_ context.Context, points []domain.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range points {
		s := append(r.series[p.Name], p)
		if over := len(s) - r.retention; over > 0 {
			s = slices.Clone(s[over:])
		}
		r.series[p.Name] = s
	}
	return nil
}

// Latest returns up to limit points of name, newest first, or domain.ErrNotFound.
func (r *Repo) Latest(_ context.Context, name string, limit int) ([]domain.Point, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.series[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if limit <= 0 || limit > len(s) {
		limit = len(s)
	}
	out := make([]domain.Point, 0, limit)
	for i := len(s) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s[i])
	}
	return out, nil
}

// Names lists stored measurement names in lexical order.
func (r *Repo) Names(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.series))
	for n := range r.series {
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// Ping reports that the in-memory store is not backed by a real database.
func (*Repo) Ping(context.Context) error {
	return errors.New("db not configured")
}
