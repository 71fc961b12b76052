package ports

import (
	"context"
	"time"

	"github.com/vshulcz/Deltaline/internal/domain"
)

// MetricsSource exposes a registry to the reporter.
type MetricsSource interface {
	Snapshot() domain.Snapshot
	Names() []string
}

// Transport delivers one batch to the remote collector.
type Transport interface {
	Post(ctx context.Context, b domain.Batch) error
}

// MetricsCollector samples values into a registry on its own schedule.
type MetricsCollector interface {
	Start(ctx context.Context, interval time.Duration) error
	Stop()
}
