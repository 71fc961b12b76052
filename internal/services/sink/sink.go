// Package sink validates and stores batches received by the collector.
package sink

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/clock"
	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/ports"
	"github.com/vshulcz/Deltaline/internal/services/audit"
	"github.com/vshulcz/Deltaline/internal/services/reporter"
)

// MaxBatchMeasurements caps a single ingest request.
const MaxBatchMeasurements = 10 * domain.DefaultBatchSize

// DefaultLatestLimit applies when Latest is called with a non-positive limit.
const DefaultLatestLimit = 100

// Service is the collector-side counterpart of the reporter transport.
type Service struct {
	repo   ports.PointsRepo
	events audit.IngestPublisher
	clock  clock.Clock
	log    *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for audit timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Service over repo. events may be nil.
func New(repo ports.PointsRepo, events audit.IngestPublisher, opts ...Option) *Service {
	s := &Service{repo: repo, events: events, clock: clock.Real(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the underlying storage.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Ingest validates b and appends every measurement as a point. It returns
// the number of stored points. Validation failures wrap domain.ErrInvalidBatch
// and store nothing.
func (s *Service) Ingest(ctx context.Context, b domain.Batch) (int, error) {
	if err := validate(b); err != nil {
		return 0, err
	}

	points := make([]domain.Point, 0, len(b.Measurements))
	names := make([]string, 0, len(b.Measurements))
	for _, m := range b.Measurements {
		src := m.Source
		if src == "" {
			src = b.Source
		}
		points = append(points, domain.Point{
			Name:        m.Name,
			Source:      src,
			MeasureTime: b.MeasureTime,
			Value:       m.Value,
		})
		names = append(names, m.Name)
	}

	if err := s.repo.Append(ctx, points); err != nil {
		return 0, fmt.Errorf("append points: %w", err)
	}

	if s.events != nil {
		s.events.Publish(ctx, audit.Ingest{
			Timestamp:    s.clock.Now().Unix(),
			MeasureTime:  b.MeasureTime,
			Source:       b.Source,
			Measurements: len(points),
			Names:        names,
			IPAddress:    audit.ClientIPFromContext(ctx),
		})
	}
	s.log.Debug("batch stored", zap.Int("points", len(points)), zap.String("source", b.Source))
	return len(points), nil
}

// Latest returns up to limit points of name, newest first.
func (s *Service) Latest(ctx context.Context, name string, limit int) ([]domain.Point, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrNotFound
	}
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	return s.repo.Latest(ctx, name, limit)
}

// Names lists every stored measurement name.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	return s.repo.Names(ctx)
}

func validate(b domain.Batch) error {
	switch {
	case b.MeasureTime <= 0:
		return fmt.Errorf("%w: measure_time must be positive", domain.ErrInvalidBatch)
	case len(b.Measurements) == 0:
		return fmt.Errorf("%w: no measurements", domain.ErrInvalidBatch)
	case len(b.Measurements) > MaxBatchMeasurements:
		return fmt.Errorf("%w: %d measurements exceed %d", domain.ErrInvalidBatch, len(b.Measurements), MaxBatchMeasurements)
	}
	if b.Source != "" && !validName(b.Source) {
		return fmt.Errorf("%w: invalid source %q", domain.ErrInvalidBatch, b.Source)
	}
	for i, m := range b.Measurements {
		if !validName(m.Name) {
			return fmt.Errorf("%w: measurement %d: invalid name %q", domain.ErrInvalidBatch, i, m.Name)
		}
		if m.Source != "" && !validName(m.Source) {
			return fmt.Errorf("%w: measurement %d: invalid source %q", domain.ErrInvalidBatch, i, m.Source)
		}
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			return fmt.Errorf("%w: measurement %d: value is not finite", domain.ErrInvalidBatch, i)
		}
	}
	return nil
}

// validName accepts exactly the names the reporter's final sanitizer leaves untouched.
func validName(name string) bool {
	out, ok := reporter.LastPassSanitizer(name)
	return ok && out == name
}
