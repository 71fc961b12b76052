package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	auditfile "github.com/vshulcz/Deltaline/internal/adapters/audit/file"
	remoteaudit "github.com/vshulcz/Deltaline/internal/adapters/audit/remote"
	"github.com/vshulcz/Deltaline/internal/adapters/collector/runtime"
	"github.com/vshulcz/Deltaline/internal/adapters/publisher/httpjson"
	"github.com/vshulcz/Deltaline/internal/adapters/registry/gometrics"
	"github.com/vshulcz/Deltaline/internal/config"
	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/services/audit"
	"github.com/vshulcz/Deltaline/internal/services/reporter"
)

type app struct {
	collector *runtime.Collector
	reporter  *reporter.Service
	cfg       config.ReporterConfig
	closers   []io.Closer
}

// build wires the registry, runtime collector, transport and reporter.
func build(cfg config.ReporterConfig, reg metrics.Registry, logger *zap.Logger) (*app, error) {
	expansion := reporter.AllExpansions()
	if len(cfg.Expansion) > 0 {
		var err error
		if expansion, err = reporter.ParseExpansion(cfg.Expansion); err != nil {
			return nil, fmt.Errorf("expansion: %w", err)
		}
	}

	events, closers, err := passEvents(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, err := httpjson.New(cfg.Address, httpjson.Options{
		User:    cfg.User,
		Token:   cfg.Token,
		Key:     cfg.Key,
		Backoff: cfg.Retry,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init transport: %w", err)
	}

	collector := runtime.New(reg, runtime.DefaultPrefix, logger)
	src := gometrics.New(reg, cfg.Filter, gometrics.WithLogger(logger))

	svc, err := reporter.New(reporter.Config{
		Source:          cfg.Source,
		SourcePattern:   cfg.SourcePattern,
		Prefix:          cfg.Prefix,
		PrefixDelimiter: cfg.PrefixDelimiter,
		RateUnit:        cfg.RateUnit,
		DurationUnit:    cfg.DurationUnit,
		Expansion:       expansion,
		Timeout:         cfg.Timeout,
		BatchSize:       cfg.BatchSize,
		Interval:        cfg.ReportInterval,
		FlushOnStop:     cfg.FlushOnStop,
		SeedCounters:    cfg.SeedCounters,
	}, src, tr, reporter.WithLogger(logger), reporter.WithEvents(events))
	if err != nil {
		return nil, err
	}
	return &app{collector: collector, reporter: svc, cfg: cfg, closers: closers}, nil
}

// passEvents attaches the log, file and webhook observers of pass reports.
func passEvents(cfg config.ReporterConfig, logger *zap.Logger) (*audit.PassSubject, []io.Closer, error) {
	events := audit.NewPassSubject(audit.LogPasses(logger))
	var closers []io.Closer
	if cfg.AuditFile != "" {
		w := auditfile.New[domain.PassReport](cfg.AuditFile)
		events.Attach(w)
		closers = append(closers, w)
	}
	if cfg.AuditURL != "" {
		hook, err := remoteaudit.New[domain.PassReport](cfg.AuditURL,
			remoteaudit.WithKey(cfg.Key),
			remoteaudit.WithBackoff(cfg.Retry),
		)
		if err != nil {
			return nil, nil, err
		}
		events.Attach(hook)
	}
	events.SetErrorHandler(func(err error) {
		logger.Warn("pass audit failed", zap.Error(err))
	})
	return events, closers, nil
}

// run polls and reports until ctx is cancelled.
func run(ctx context.Context, cfg config.ReporterConfig, logger *zap.Logger) error {
	a, err := build(cfg, metrics.NewRegistry(), logger)
	if err != nil {
		return err
	}
	return a.serve(ctx)
}

func (a *app) serve(ctx context.Context) error {
	if err := a.collector.Start(ctx, a.cfg.PollInterval); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		a.collector.Stop()
		return nil
	})
	g.Go(func() error {
		return a.reporter.Run(gctx)
	})
	err := g.Wait()
	for _, c := range a.closers {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}
