// Package subscription implements the subscription repository using
// PostgreSQL.
package subscription

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/postgres"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

const table = "subscriptions"

var columns = []string{"id", "user_id", "type", "query", "is_active", "created_at"}

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repo provides subscription persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new subscription repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

func (r *Repo) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFromCtx(ctx, r.db)
}

// Create inserts a new active subscription and returns the persisted entity.
// Returns domain.ErrAlreadyExists when the (user, type, query) triple exists.
func (r *Repo) Create(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
	sql, args, err := qb.Insert(table).
		Columns("user_id", "type", "query").
		Values(userID, typ, query).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sub domain.Subscription
	if err := pgxscan.Get(ctx, r.q(ctx), &sub, sql, args...); err != nil {
		return nil, postgres.MapError(err, "subscription", userID)
	}
	return &sub, nil
}

// GetByUnique returns the subscription with the given (user, type, query)
// triple. A nil query matches rows whose query IS NULL.
func (r *Repo) GetByUnique(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
	sql, args, err := qb.Select(columns...).
		From(table).
		Where(squirrel.Eq{"user_id": userID, "type": typ, "query": query}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sub domain.Subscription
	if err := pgxscan.Get(ctx, r.q(ctx), &sub, sql, args...); err != nil {
		return nil, postgres.MapError(err, "subscription", userID)
	}
	return &sub, nil
}

// ListByUser returns the user's active subscriptions, oldest first.
func (r *Repo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	sql, args, err := qb.Select(columns...).
		From(table).
		Where(squirrel.Eq{"user_id": userID, "is_active": true}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var subs []domain.Subscription
	if err := pgxscan.Select(ctx, r.q(ctx), &subs, sql, args...); err != nil {
		return nil, postgres.MapError(err, "subscription", userID)
	}
	return subs, nil
}

// ListKeywordsByUser returns the user's active KEYWORD subscriptions. Used by
// the near-duplicate guard before a new keyword is accepted.
func (r *Repo) ListKeywordsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	sql, args, err := qb.Select(columns...).
		From(table).
		Where(squirrel.Eq{
			"user_id":   userID,
			"type":      domain.SubscriptionKeyword,
			"is_active": true,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var subs []domain.Subscription
	if err := pgxscan.Select(ctx, r.q(ctx), &subs, sql, args...); err != nil {
		return nil, postgres.MapError(err, "subscription", userID)
	}
	return subs, nil
}

// ListActiveWithUsers returns every active subscription joined with its
// owner. Notification planning evaluates this set against each changed act.
func (r *Repo) ListActiveWithUsers(ctx context.Context) ([]domain.SubscriptionWithUser, error) {
	sql, args, err := qb.Select(
		"s.id", "s.user_id", "s.type", "s.query", "s.is_active", "s.created_at",
		`u.id AS "user.id"`,
		`u.telegram_chat_id AS "user.telegram_chat_id"`,
		`u.locale AS "user.locale"`,
		`u.created_at AS "user.created_at"`,
	).
		From(table + " s").
		Join("users u ON u.id = s.user_id").
		Where(squirrel.Eq{"s.is_active": true}).
		OrderBy("s.created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var subs []domain.SubscriptionWithUser
	if err := pgxscan.Select(ctx, r.q(ctx), &subs, sql, args...); err != nil {
		return nil, postgres.MapError(err, "subscription", nil)
	}
	return subs, nil
}

// Delete removes the user's subscription by id. Returns domain.ErrNotFound
// when the row does not exist or belongs to another user.
func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	sql, args, err := qb.Delete(table).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := r.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "subscription", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func joinColumns() string {
	return strings.Join(columns, ", ")
}
