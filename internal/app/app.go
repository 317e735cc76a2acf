package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/eqanun"
	"github.com/qanunbot/eqanun-notifier/internal/adapter/postgres"
	actrepo "github.com/qanunbot/eqanun-notifier/internal/adapter/postgres/act"
	outboxrepo "github.com/qanunbot/eqanun-notifier/internal/adapter/postgres/outbox"
	staterepo "github.com/qanunbot/eqanun-notifier/internal/adapter/postgres/state"
	subrepo "github.com/qanunbot/eqanun-notifier/internal/adapter/postgres/subscription"
	userrepo "github.com/qanunbot/eqanun-notifier/internal/adapter/postgres/user"
	"github.com/qanunbot/eqanun-notifier/internal/adapter/telegram"
	"github.com/qanunbot/eqanun-notifier/internal/config"
	"github.com/qanunbot/eqanun-notifier/internal/service/ingest"
	"github.com/qanunbot/eqanun-notifier/internal/service/notify"
	subscriptionsvc "github.com/qanunbot/eqanun-notifier/internal/service/subscription"
	"github.com/qanunbot/eqanun-notifier/internal/transport/telegrambot"
)

// Run wires the application together and blocks until ctx is cancelled.
//
// Catalog ingestion is idempotent and runs on every instance. The outbox
// planner/sender jobs and the Telegram long-poll loop run only on the
// instance that wins the Postgres advisory lock, keeping delivery and the
// bot single-owner.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}

	log := NewLogger(cfg.Log)
	log.Info("starting", "version", BuildVersion())

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("app: connect database: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(pool); err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}

	txManager := postgres.NewTxManager(pool)

	acts := actrepo.New(pool)
	state := staterepo.New(pool)
	users := userrepo.New(pool)
	subs := subrepo.New(pool)
	outbox := outboxrepo.New(pool)

	catalog := eqanun.New(cfg.Source, log)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("app: telegram auth: %w", err)
	}
	log.Info("telegram bot authorized", "username", botAPI.Self.UserName)

	ingestSvc := ingest.NewService(log, catalog, acts, state, outbox, txManager, cfg.Source)
	planner := notify.NewPlanner(log, outbox, acts, subs, txManager, cfg.Notify)
	notifySender := notify.NewSender(log, outbox, telegram.NewSender(botAPI), txManager, cfg.Notify)
	subSvc := subscriptionsvc.NewService(log, users, subs)

	leader := postgres.NewLeaderLock(pool, cfg.Telegram.LeaderLockKey)
	acquired, err := leader.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("app: leader lock: %w", err)
	}
	if acquired {
		defer func() {
			if err := leader.Release(context.Background()); err != nil {
				log.Error("release leader lock", "error", err)
			}
		}()
	}

	scheduler, err := newScheduler(log, cfg.Jobs, ingestSvc, planner, notifySender, acquired)
	if err != nil {
		return fmt.Errorf("app: scheduler: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	if !acquired {
		log.Warn("another instance owns the leader lock, running ingest only")
		<-ctx.Done()
		return nil
	}

	bot := telegrambot.New(log, botAPI, subSvc, ingestSvc, catalog, cfg.Telegram)

	log.Info("bot loop starting as leader")
	if err := bot.Run(ctx); err != nil {
		return fmt.Errorf("app: bot: %w", err)
	}

	return nil
}

// newScheduler registers the periodic jobs with second-precision cron specs
// in the configured timezone. The planner/sender jobs are registered only
// on the leader so a record cannot be delivered from two instances at once.
func newScheduler(
	log *slog.Logger,
	cfg config.JobsConfig,
	ingestSvc *ingest.Service,
	planner *notify.Planner,
	sender *notify.Sender,
	isLeader bool,
) (*cron.Cron, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))

	type job struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}

	jobs := []job{
		{
			name: "ingest",
			spec: cfg.IngestSpec,
			run: func(ctx context.Context) error {
				res, err := ingestSvc.Synchronize(ctx)
				if err != nil {
					return err
				}
				if res.Created > 0 || res.Updated > 0 {
					log.Info("catalog synchronized",
						"created", res.Created, "updated", res.Updated, "max_id", res.MaxID)
				}
				return nil
			},
		},
	}
	if isLeader {
		jobs = append(jobs,
			job{name: "plan", spec: cfg.PlanSpec, run: planner.Plan},
			job{name: "send", spec: cfg.SendSpec, run: sender.Send},
		)
	}

	for _, job := range jobs {
		_, err := c.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			if err := job.run(ctx); err != nil {
				log.Error("job failed", "job", job.name, "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("register job %s (%q): %w", job.name, job.spec, err)
		}
	}

	return c, nil
}

// jobTimeout bounds a single cron job run.
const jobTimeout = 10 * time.Minute
