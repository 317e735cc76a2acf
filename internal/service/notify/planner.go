// Package notify implements the two outbox consumers of the notification
// pipeline: the planner, which fans detected changes out to matching
// subscribers, and the sender, which delivers the resulting messages.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/telegram"
	"github.com/qanunbot/eqanun-notifier/internal/config"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// outboxRepo defines the outbox interface needed by the notification
// services.
type outboxRepo interface {
	Enqueue(ctx context.Context, rec domain.OutboxRecord) error
	ListPending(ctx context.Context, kind domain.OutboxKind, limit int) ([]domain.OutboxRecord, error)
	Update(ctx context.Context, rec domain.OutboxRecord) error
}

// actReader defines the act lookup interface needed by the planner.
type actReader interface {
	GetByExternalID(ctx context.Context, externalID int64) (*domain.LegalAct, error)
}

// subscriptionReader defines the subscription listing interface needed by
// the planner.
type subscriptionReader interface {
	ListActiveWithUsers(ctx context.Context) ([]domain.SubscriptionWithUser, error)
}

// txManager defines the transaction manager interface needed by the
// notification services.
type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Planner consumes ACT_CHANGE_DETECTED records and produces one
// USER_NOTIFICATION record per matching active subscription.
type Planner struct {
	log       *slog.Logger
	outbox    outboxRepo
	acts      actReader
	subs      subscriptionReader
	tx        txManager
	batchSize int
}

// NewPlanner creates a new notification planner instance.
func NewPlanner(
	logger *slog.Logger,
	outbox outboxRepo,
	acts actReader,
	subs subscriptionReader,
	tx txManager,
	cfg config.NotifyConfig,
) *Planner {
	return &Planner{
		log:       logger.With("service", "notify.planner"),
		outbox:    outbox,
		acts:      acts,
		subs:      subs,
		tx:        tx,
		batchSize: cfg.PlanBatchSize,
	}
}

// Plan processes one batch of pending change records inside a single
// transaction. A record whose act has vanished is marked FAILED; a
// successfully fanned-out record is marked SENT even when it matched no
// subscriber.
func (p *Planner) Plan(ctx context.Context) error {
	err := p.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pending, err := p.outbox.ListPending(txCtx, domain.OutboxChangeDetected, p.batchSize)
		if err != nil {
			return fmt.Errorf("list pending changes: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		subs, err := p.subs.ListActiveWithUsers(txCtx)
		if err != nil {
			return fmt.Errorf("list active subscriptions: %w", err)
		}

		planned := 0
		for _, evt := range pending {
			n, err := p.planOne(txCtx, evt, subs)
			if err != nil {
				return err
			}
			planned += n
		}

		p.log.InfoContext(txCtx, "planning finished",
			slog.Int("changes", len(pending)),
			slog.Int("notifications", planned))
		return nil
	})
	if err != nil {
		return fmt.Errorf("notify.Plan: %w", err)
	}
	return nil
}

func (p *Planner) planOne(ctx context.Context, evt domain.OutboxRecord, subs []domain.SubscriptionWithUser) (int, error) {
	payload, err := domain.DecodeChangeDetected(evt)
	if err != nil {
		p.log.WarnContext(ctx, "undecodable change record",
			slog.String("id", evt.ID.String()),
			slog.String("error", err.Error()))
		evt.Status = domain.OutboxFailed
		return 0, p.outbox.Update(ctx, evt)
	}

	act, err := p.acts.GetByExternalID(ctx, payload.ExternalID)
	if errors.Is(err, domain.ErrNotFound) {
		p.log.WarnContext(ctx, "act vanished before planning",
			slog.Int64("external_id", payload.ExternalID))
		evt.Status = domain.OutboxFailed
		return 0, p.outbox.Update(ctx, evt)
	}
	if err != nil {
		return 0, fmt.Errorf("get act %d: %w", payload.ExternalID, err)
	}

	planned := 0
	for _, sub := range subs {
		if !sub.Matches(*act) {
			continue
		}

		safe := telegram.BuildSafeTitle(act.Title)
		notif := domain.UserNotificationPayload{
			TelegramChatID: sub.User.TelegramChatID,
			ExternalID:     payload.ExternalID,
			Title:          safe.Title,
			Category:       act.Category.String(),
			URL:            act.URL,
			Updated:        payload.Updated,
		}
		if safe.Truncated {
			notif.OriginalTitleLength = safe.OriginalLength
		}

		rec, err := domain.NewUserNotification(notif)
		if err != nil {
			return planned, err
		}
		if err := p.outbox.Enqueue(ctx, rec); err != nil {
			return planned, fmt.Errorf("enqueue notification for chat %d: %w", sub.User.TelegramChatID, err)
		}
		planned++
	}

	evt.Status = domain.OutboxSent
	if err := p.outbox.Update(ctx, evt); err != nil {
		return planned, fmt.Errorf("finish change record %s: %w", evt.ID, err)
	}
	return planned, nil
}
