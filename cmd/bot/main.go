// Command bot runs the e-qanun.az catalog notifier: the cron jobs that
// synchronize the catalog and drain the notification outbox, and (on the
// instance holding the Postgres advisory lock) the Telegram long-poll loop.
//
// Configuration comes from config.yaml and environment variables; see
// internal/config. Requires DATABASE_DSN and TELEGRAM_BOT_TOKEN.
//
// Exit codes: 0 = clean shutdown, 1 = startup or runtime error.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/qanunbot/eqanun-notifier/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
