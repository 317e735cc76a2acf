// Package state implements the system_state key/value repository, which
// currently holds only the ingestion watermark.
package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/postgres"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// watermarkKey stores the highest external id known to be fully ingested.
const watermarkKey = "lastSeenExternalId"

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repo provides system state persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new state repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

func (r *Repo) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFromCtx(ctx, r.db)
}

// LastSeenExternalID returns the ingestion watermark, or nil when no
// synchronization has completed yet (initial-load mode).
func (r *Repo) LastSeenExternalID(ctx context.Context) (*int64, error) {
	sql, args, err := qb.Select("value").
		From("system_state").
		Where(squirrel.Eq{"key": watermarkKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var value string
	if err := pgxscan.Get(ctx, r.q(ctx), &value, sql, args...); err != nil {
		if errors.Is(postgres.MapError(err, "system_state", watermarkKey), domain.ErrNotFound) {
			return nil, nil
		}
		return nil, postgres.MapError(err, "system_state", watermarkKey)
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("system_state %s: parse %q: %w", watermarkKey, value, err)
	}
	return &id, nil
}

// SetLastSeenExternalID writes the watermark. Callers are responsible for
// monotonicity (new value = max(old, highest seen id)).
func (r *Repo) SetLastSeenExternalID(ctx context.Context, id int64) error {
	sql, args, err := qb.Insert("system_state").
		Columns("key", "value").
		Values(watermarkKey, strconv.FormatInt(id, 10)).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.q(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "system_state", watermarkKey)
	}
	return nil
}
