// Command colonyfeed periodically snapshots a colony's domain funds and member
// roles and serves the latest snapshots over a read-only HTTP API.
//
// Usage:
//
//	colonyfeed --config colonyfeed.yaml
//	colonyfeed --setup (interactive wizard, then start)
//
// Environment variables (also read from .env):
//
//	COLONYFEED_RPC_ENDPOINT, COLONYFEED_COLONY_ADDRESS, PORT
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/colonyfeed/config"
	"github.com/vadiminshakov/colonyfeed/internal/app"
	"github.com/vadiminshakov/colonyfeed/internal/setup"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	if flags.Setup {
		path, err := setup.RunTUI(flags.ConfigPath)
		if err != nil {
			log.Fatal(err)
		}
		flags.ConfigPath = path
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}

	if err := run(flags, logger); err != nil {
		logger.Error("colony feed stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("colony feed stopped")
	_ = logger.Sync()
}

func run(flags config.Flags, logger *zap.Logger) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "failed to get configuration")
	}

	feed, err := app.New(cfg, logger)
	if err != nil {
		return errors.Wrap(err, "failed to create colony feed")
	}
	defer feed.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return feed.Run(ctx)
}
