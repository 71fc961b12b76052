// Command sink is a development collector that stores reporter batches.
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

	cfg, err := config.LoadSinkConfig(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	logger, err := misc.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("sink starting", append(info.Fields(), zap.String("addr", cfg.Address), zap.Bool("postgres", cfg.DSN != ""))...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		logger.Fatal("sink failed", zap.Error(err))
	}
}
