package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/pkg/observer"
)

// LogPasses logs failed passes at warn and the rest at debug.
func LogPasses(log *zap.Logger) PassObserver {
	return observer.ObserverFunc[domain.PassReport](func(_ context.Context, r domain.PassReport) error {
		fields := []zap.Field{
			zap.String("reporter", r.Reporter),
			zap.Int64("measure_time", r.MeasureTime),
			zap.Int("measurements", r.Measurements),
			zap.Int("batches_sent", r.BatchesSent),
			zap.Int("batches_failed", r.BatchesFailed),
			zap.Duration("duration", r.Duration),
		}
		if !r.OK() {
			log.Warn("pass incomplete", fields...)
			return nil
		}
		log.Debug("pass audit", fields...)
		return nil
	})
}

// LogIngests logs every accepted batch at info.
func LogIngests(log *zap.Logger) IngestObserver {
	return observer.ObserverFunc[Ingest](func(_ context.Context, e Ingest) error {
		log.Info("batch ingested",
			zap.Int64("measure_time", e.MeasureTime),
			zap.String("source", e.Source),
			zap.Int("measurements", e.Measurements),
			zap.String("ip", e.IPAddress),
		)
		return nil
	})
}
