package ports

import (
	"context"

	"github.com/vshulcz/Deltaline/internal/domain"
)

// PointsRepo stores measurements received by the collector sink.
type PointsRepo interface {
	Append(ctx context.Context, points []domain.Point) error
	Latest(ctx context.Context, name string, limit int) ([]domain.Point, error)
	Names(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}
