package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vshulcz/Deltaline/internal/adapters/http/ginserver"
	"github.com/vshulcz/Deltaline/internal/adapters/http/ginserver/middlewares"
	memrepo "github.com/vshulcz/Deltaline/internal/adapters/repository/memory"
	pgrepo "github.com/vshulcz/Deltaline/internal/adapters/repository/postgres"
	"github.com/vshulcz/Deltaline/internal/config"
	"github.com/vshulcz/Deltaline/internal/misc"
	"github.com/vshulcz/Deltaline/internal/ports"
	"github.com/vshulcz/Deltaline/internal/services/audit"
	"github.com/vshulcz/Deltaline/internal/services/sink"
)

const shutdownTimeout = 5 * time.Second

// run serves until ctx is cancelled, then shuts the server down gracefully.
func run(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) error {
	repo, closeRepo := buildRepo(ctx, cfg, logger)
	defer closeRepo()

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           newHandler(cfg, repo, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("sink stopped")
		return nil
	})
	return g.Wait()
}

func newHandler(cfg config.SinkConfig, repo ports.PointsRepo, logger *zap.Logger) http.Handler {
	events := audit.NewIngestSubject(audit.LogIngests(logger))
	events.SetErrorHandler(func(err error) {
		logger.Warn("ingest observer failed", zap.Error(err))
	})

	svc := sink.New(repo, events, sink.WithLogger(logger))
	return ginserver.NewRouter(ginserver.NewHandler(svc),
		middlewares.ZapLogger(logger),
		middlewares.BasicAuth(cfg.User, cfg.Token),
		middlewares.GzipRequest(),
		middlewares.GzipResponse(),
		middlewares.HashSHA256(cfg.Key),
	)
}

// buildRepo prefers Postgres and falls back to memory when it cannot be reached.
func buildRepo(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (ports.PointsRepo, func()) {
	noop := func() {}
	if cfg.DSN == "" {
		return memrepo.New(0), noop
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err == nil {
		op := func() error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			return pgrepo.Migrate(db)
		}
		if err = misc.Retry(ctx, misc.DefaultBackoff, pgrepo.IsRetryable, op); err == nil {
			logger.Info("db connected & migrated")
			return pgrepo.New(db), func() {
				if cerr := db.Close(); cerr != nil {
					logger.Warn("db close failed", zap.Error(cerr))
				}
			}
		}
		_ = db.Close()
	}
	logger.Warn("postgres init failed, falling back to memory", zap.Error(err))
	return memrepo.New(0), noop
}
