// Package act implements the legal act and change event repository using
// PostgreSQL.
package act

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/postgres"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

const table = "legal_acts"

var columns = []string{
	"id", "external_id", "published_date", "category", "title",
	"summary", "url", "content_hash", "created_at", "updated_at",
}

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repo provides legal act persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new act repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

func (r *Repo) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFromCtx(ctx, r.db)
}

// GetByExternalID returns the act with the given source identifier.
// Returns domain.ErrNotFound if no such act was ingested yet.
func (r *Repo) GetByExternalID(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
	sql, args, err := qb.Select(columns...).
		From(table).
		Where(squirrel.Eq{"external_id": externalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var act domain.LegalAct
	if err := pgxscan.Get(ctx, r.q(ctx), &act, sql, args...); err != nil {
		return nil, postgres.MapError(err, "legal_act", externalID)
	}
	return &act, nil
}

// Create inserts a new act and returns the persisted entity.
func (r *Repo) Create(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
	sql, args, err := qb.Insert(table).
		Columns("external_id", "published_date", "category", "title", "summary", "url", "content_hash").
		Values(act.ExternalID, act.PublishedDate, act.Category, act.Title, act.Summary, act.URL, act.ContentHash).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var saved domain.LegalAct
	if err := pgxscan.Get(ctx, r.q(ctx), &saved, sql, args...); err != nil {
		return nil, postgres.MapError(err, "legal_act", act.ExternalID)
	}
	return &saved, nil
}

// Update overwrites the mutable fields of an existing act and returns the
// persisted entity.
func (r *Repo) Update(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
	sql, args, err := qb.Update(table).
		Set("title", act.Title).
		Set("category", act.Category).
		Set("published_date", act.PublishedDate).
		Set("url", act.URL).
		Set("content_hash", act.ContentHash).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": act.ID}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var saved domain.LegalAct
	if err := pgxscan.Get(ctx, r.q(ctx), &saved, sql, args...); err != nil {
		return nil, postgres.MapError(err, "legal_act", act.ExternalID)
	}
	return &saved, nil
}

// AppendEvent records a CREATED or UPDATED change event for the act. Events
// are append-only and never mutated afterwards.
func (r *Repo) AppendEvent(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	sql, args, err := qb.Insert("act_events").
		Columns("act_id", "type", "snapshot").
		Values(actID, eventType, raw).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.q(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "act_event", actID)
	}
	return nil
}

func joinColumns() string {
	return strings.Join(columns, ", ")
}
