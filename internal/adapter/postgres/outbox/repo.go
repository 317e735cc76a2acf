// Package outbox implements the transactional outbox repository using
// PostgreSQL.
package outbox

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/postgres"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

const table = "outbox"

var columns = []string{"id", "kind", "payload", "status", "attempts", "created_at"}

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repo provides outbox persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new outbox repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

func (r *Repo) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFromCtx(ctx, r.db)
}

// Enqueue inserts one record. Producers call this inside the same
// transaction as the state change the record announces.
func (r *Repo) Enqueue(ctx context.Context, rec domain.OutboxRecord) error {
	sql, args, err := qb.Insert(table).
		Columns("id", "kind", "payload", "status", "attempts").
		Values(rec.ID, rec.Kind, rec.Payload, rec.Status, rec.Attempts).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.q(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "outbox", rec.ID)
	}
	return nil
}

// ListPending returns up to limit NEW records of the given kind, oldest
// first. FIFO order preserves the notification sequence per user.
func (r *Repo) ListPending(ctx context.Context, kind domain.OutboxKind, limit int) ([]domain.OutboxRecord, error) {
	sql, args, err := qb.Select(columns...).
		From(table).
		Where(squirrel.Eq{"kind": kind, "status": domain.OutboxNew}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var recs []domain.OutboxRecord
	if err := pgxscan.Select(ctx, r.q(ctx), &recs, sql, args...); err != nil {
		return nil, postgres.MapError(err, "outbox", kind)
	}
	return recs, nil
}

// Update persists the record's status and attempt counter.
func (r *Repo) Update(ctx context.Context, rec domain.OutboxRecord) error {
	sql, args, err := qb.Update(table).
		Set("status", rec.Status).
		Set("attempts", rec.Attempts).
		Where(squirrel.Eq{"id": rec.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := r.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "outbox", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox %s: %w", rec.ID, domain.ErrNotFound)
	}
	return nil
}
