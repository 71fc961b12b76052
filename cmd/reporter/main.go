// Command reporter samples runtime metrics into a registry and ships them
// to a collector as delta-encoded batches.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vshulcz/Deltaline/internal/config"
	"github.com/vshulcz/Deltaline/internal/misc"
	"github.com/vshulcz/Deltaline/pkg/util"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	info := util.BuildInfo{Version: buildVersion, Date: buildDate, Commit: buildCommit}
	info.Print(os.Stdout)

	cfg, err := config.LoadReporterConfig(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	logger, err := misc.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("reporter starting", append(info.Fields(),
		zap.String("collector", cfg.Address),
		zap.Duration("report_interval", cfg.ReportInterval),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("batch_size", cfg.BatchSize),
	)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		logger.Fatal("reporter failed", zap.Error(err))
	}
}
