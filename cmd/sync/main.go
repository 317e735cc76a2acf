// Command sync runs a single catalog synchronization pass against
// e-qanun.az and exits. It is intended for manual backfills and the
// initial catalog load, where waiting for the next cron tick is
// inconvenient.
//
// Requires DATABASE_DSN; TELEGRAM_BOT_TOKEN is not needed.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/eqanun"
	"github.com/qanunbot/eqanun-notifier/internal/adapter/postgres"
	actrepo "github.com/qanunbot/eqanun-notifier/internal/adapter/postgres/act"
	outboxrepo "github.com/qanunbot/eqanun-notifier/internal/adapter/postgres/outbox"
	staterepo "github.com/qanunbot/eqanun-notifier/internal/adapter/postgres/state"
	"github.com/qanunbot/eqanun-notifier/internal/app"
	"github.com/qanunbot/eqanun-notifier/internal/config"
	"github.com/qanunbot/eqanun-notifier/internal/service/ingest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(pool); err != nil {
		logger.Error("migrate", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc := ingest.NewService(
		logger,
		eqanun.New(cfg.Source, logger),
		actrepo.New(pool),
		staterepo.New(pool),
		outboxrepo.New(pool),
		postgres.NewTxManager(pool),
		cfg.Source,
	)

	res, err := svc.Synchronize(ctx)
	if err != nil {
		logger.Error("synchronize failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("synchronize completed",
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("scanned", res.Scanned),
		slog.Int64("max_id", res.MaxID),
		slog.Bool("initial_load", res.InitialLoad),
	)
}
