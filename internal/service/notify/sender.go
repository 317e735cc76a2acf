package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/telegram"
	"github.com/qanunbot/eqanun-notifier/internal/config"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// messageSender defines the delivery channel interface needed by the sender.
type messageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Sender consumes USER_NOTIFICATION records and delivers them over Telegram
// with at-least-once semantics.
type Sender struct {
	log       *slog.Logger
	outbox    outboxRepo
	tg        messageSender
	tx        txManager
	batchSize int
}

// NewSender creates a new notification sender instance.
func NewSender(
	logger *slog.Logger,
	outbox outboxRepo,
	tg messageSender,
	tx txManager,
	cfg config.NotifyConfig,
) *Sender {
	return &Sender{
		log:       logger.With("service", "notify.sender"),
		outbox:    outbox,
		tg:        tg,
		tx:        tx,
		batchSize: cfg.SendBatchSize,
	}
}

// Send processes one batch of pending notifications inside a single
// transaction. A delivery failure bumps the attempt counter and keeps the
// record NEW for the next run until the retry ceiling turns it FAILED.
func (s *Sender) Send(ctx context.Context) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		jobs, err := s.outbox.ListPending(txCtx, domain.OutboxUserNotification, s.batchSize)
		if err != nil {
			return fmt.Errorf("list pending notifications: %w", err)
		}

		sent := 0
		for _, job := range jobs {
			ok, err := s.sendOne(txCtx, job)
			if err != nil {
				return err
			}
			if ok {
				sent++
			}
		}

		if len(jobs) > 0 {
			s.log.InfoContext(txCtx, "delivery finished",
				slog.Int("batch", len(jobs)),
				slog.Int("sent", sent))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("notify.Send: %w", err)
	}
	return nil
}

func (s *Sender) sendOne(ctx context.Context, job domain.OutboxRecord) (bool, error) {
	payload, err := domain.DecodeUserNotification(job)
	if err != nil {
		s.log.WarnContext(ctx, "undecodable notification record",
			slog.String("id", job.ID.String()),
			slog.String("error", err.Error()))
		job.Status = domain.OutboxFailed
		return false, s.outbox.Update(ctx, job)
	}

	text := telegram.ComposeNotification(payload)

	if err := s.tg.SendMessage(ctx, payload.TelegramChatID, text); err != nil {
		job.Attempts++
		if job.Attempts >= domain.MaxSendAttempts {
			job.Status = domain.OutboxFailed
		}
		s.log.WarnContext(ctx, "delivery failed",
			slog.Int64("chat_id", payload.TelegramChatID),
			slog.Int("attempt", job.Attempts),
			slog.String("status", job.Status.String()),
			slog.String("error", err.Error()))
		return false, s.outbox.Update(ctx, job)
	}

	job.Status = domain.OutboxSent
	return true, s.outbox.Update(ctx, job)
}
