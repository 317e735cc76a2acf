// Package user implements the User repository using PostgreSQL.
package user

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/postgres"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

const table = "users"

var columns = []string{"id", "telegram_chat_id", "locale", "created_at"}

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repo provides user persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new user repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

func (r *Repo) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFromCtx(ctx, r.db)
}

// GetByChatID returns the user owning the given Telegram chat.
func (r *Repo) GetByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	sql, args, err := qb.Select(columns...).
		From(table).
		Where(squirrel.Eq{"telegram_chat_id": chatID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u domain.User
	if err := pgxscan.Get(ctx, r.q(ctx), &u, sql, args...); err != nil {
		return nil, postgres.MapError(err, "user", chatID)
	}
	return &u, nil
}

// Create inserts a new user with the default locale and returns the
// persisted entity. Returns domain.ErrAlreadyExists when the chat is already
// registered.
func (r *Repo) Create(ctx context.Context, chatID int64) (*domain.User, error) {
	sql, args, err := qb.Insert(table).
		Columns("telegram_chat_id").
		Values(chatID).
		Suffix("RETURNING id, telegram_chat_id, locale, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u domain.User
	if err := pgxscan.Get(ctx, r.q(ctx), &u, sql, args...); err != nil {
		return nil, postgres.MapError(err, "user", chatID)
	}
	return &u, nil
}

// UpdateLocale changes the user's interface language.
func (r *Repo) UpdateLocale(ctx context.Context, id uuid.UUID, locale string) (*domain.User, error) {
	sql, args, err := qb.Update(table).
		Set("locale", locale).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING id, telegram_chat_id, locale, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u domain.User
	if err := pgxscan.Get(ctx, r.q(ctx), &u, sql, args...); err != nil {
		return nil, postgres.MapError(err, "user", id)
	}
	return &u, nil
}
