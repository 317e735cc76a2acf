// Package ingest implements incremental synchronization of the legal act
// catalog from the e-qanun.az API into the local database.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/eqanun"
	"github.com/qanunbot/eqanun-notifier/internal/config"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// catalogAPI defines the source API interface needed by the ingest service.
type catalogAPI interface {
	FetchPage(ctx context.Context, start, length int) (eqanun.Page, error)
}

// actRepo defines the act repository interface needed by the ingest service.
type actRepo interface {
	GetByExternalID(ctx context.Context, externalID int64) (*domain.LegalAct, error)
	Create(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error)
	Update(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error)
	AppendEvent(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error
}

// stateRepo defines the watermark storage interface needed by the ingest
// service.
type stateRepo interface {
	LastSeenExternalID(ctx context.Context) (*int64, error)
	SetLastSeenExternalID(ctx context.Context, id int64) error
}

// outboxRepo defines the outbox interface needed by the ingest service.
type outboxRepo interface {
	Enqueue(ctx context.Context, rec domain.OutboxRecord) error
}

// txManager defines the transaction manager interface needed by the ingest
// service.
type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements catalog synchronization.
type Service struct {
	log           *slog.Logger
	api           catalogAPI
	acts          actRepo
	state         stateRepo
	outbox        outboxRepo
	tx            txManager
	pageSize      int
	maxPageOffset int
}

// NewService creates a new ingest service instance.
func NewService(
	logger *slog.Logger,
	api catalogAPI,
	acts actRepo,
	state stateRepo,
	outbox outboxRepo,
	tx txManager,
	cfg config.SourceConfig,
) *Service {
	return &Service{
		log:           logger.With("service", "ingest"),
		api:           api,
		acts:          acts,
		state:         state,
		outbox:        outbox,
		tx:            tx,
		pageSize:      cfg.PageSize,
		maxPageOffset: cfg.MaxPageOffset,
	}
}

// Result summarizes one synchronization run.
type Result struct {
	Created     int
	Updated     int
	MaxID       int64
	Scanned     int
	InitialLoad bool
}

// Synchronize runs one catalog sync. With no watermark present it performs
// the initial full load, which records acts and events but emits no outbox
// records. With a watermark it pages through the source until it hits a page
// with nothing new, then applies all candidates in a single transaction and
// advances the watermark.
func (s *Service) Synchronize(ctx context.Context) (Result, error) {
	lastSeen, err := s.state.LastSeenExternalID(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("ingest.Synchronize: %w", err)
	}
	initialLoad := lastSeen == nil

	watermark := int64(0)
	if lastSeen != nil {
		watermark = *lastSeen
	}
	s.log.InfoContext(ctx, "starting sync",
		slog.Int64("last_seen", watermark),
		slog.Bool("initial_load", initialLoad))

	candidates, maxID := s.collect(ctx, watermark, initialLoad)

	if len(candidates) == 0 {
		s.log.InfoContext(ctx, "no new acts found", slog.Int64("last_seen", watermark))
		return Result{MaxID: watermark, InitialLoad: initialLoad}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ExternalID < candidates[j].ExternalID
	})
	s.log.InfoContext(ctx, "applying candidates",
		slog.Int("count", len(candidates)),
		slog.Int64("min_id", candidates[0].ExternalID),
		slog.Int64("max_id", candidates[len(candidates)-1].ExternalID))

	var created, updated int
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var txMaxID int64
		for _, raw := range candidates {
			wasCreated, wasUpdated, err := s.ingestOne(txCtx, raw, initialLoad)
			if err != nil {
				return err
			}
			if wasCreated {
				created++
			}
			if wasUpdated {
				updated++
			}
			if raw.ExternalID > txMaxID {
				txMaxID = raw.ExternalID
			}
		}

		if txMaxID > 0 {
			if err := s.state.SetLastSeenExternalID(txCtx, txMaxID); err != nil {
				return fmt.Errorf("advance watermark: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ingest.Synchronize: %w", err)
	}

	s.log.InfoContext(ctx, "sync finished",
		slog.Int("created", created),
		slog.Int("updated", updated),
		slog.Int64("new_max_id", maxID),
		slog.Bool("initial_load", initialLoad))

	return Result{
		Created:     created,
		Updated:     updated,
		MaxID:       maxID,
		Scanned:     len(candidates),
		InitialLoad: initialLoad,
	}, nil
}

// collect pages through the source and gathers ingestion candidates. Fetch
// failures end pagination; whatever was gathered so far is still applied.
func (s *Service) collect(ctx context.Context, watermark int64, initialLoad bool) ([]domain.RawAct, int64) {
	var (
		candidates []domain.RawAct
		maxID      = watermark
		start      = 0
		totalCount = -1
	)

	for {
		page, err := s.api.FetchPage(ctx, start, s.pageSize)
		if err != nil {
			s.log.ErrorContext(ctx, "page fetch failed",
				slog.Int("start", start),
				slog.String("error", err.Error()))
			break
		}
		if len(page.Items) == 0 {
			break
		}
		if totalCount < 0 {
			totalCount = page.TotalCount
		}

		newOnPage := 0
		for _, item := range page.Items {
			if !initialLoad && item.ID <= watermark {
				continue
			}
			newOnPage++
			candidates = append(candidates, eqanun.ItemToRawAct(item))
			if item.ID > maxID {
				maxID = item.ID
			}
		}
		s.log.DebugContext(ctx, "page processed",
			slog.Int("start", start),
			slog.Int("new_on_page", newOnPage),
			slog.Int("cumulative", len(candidates)))

		if !initialLoad && newOnPage == 0 {
			break
		}

		start += s.pageSize

		if initialLoad {
			if (totalCount >= 0 && start >= totalCount) || len(page.Items) < s.pageSize {
				break
			}
		} else if start > s.maxPageOffset {
			s.log.WarnContext(ctx, "pagination safety limit reached", slog.Int("start", start))
			break
		}
	}

	return candidates, maxID
}

// ingestOne upserts one candidate. Creation and content changes append an
// event; outbox emission is suppressed during the initial load.
func (s *Service) ingestOne(ctx context.Context, raw domain.RawAct, initialLoad bool) (created, updated bool, err error) {
	existing, err := s.acts.GetByExternalID(ctx, raw.ExternalID)
	switch {
	case err == nil:
		changed, err := s.updateExisting(ctx, existing, raw, initialLoad)
		return false, changed, err
	case errors.Is(err, domain.ErrNotFound):
		if err := s.createNew(ctx, raw, initialLoad); err != nil {
			return false, false, err
		}
		return true, false, nil
	default:
		return false, false, fmt.Errorf("get act %d: %w", raw.ExternalID, err)
	}
}

func (s *Service) createNew(ctx context.Context, raw domain.RawAct, initialLoad bool) error {
	title := s.safeTitle(ctx, raw)

	saved, err := s.acts.Create(ctx, &domain.LegalAct{
		ExternalID:    raw.ExternalID,
		PublishedDate: raw.PublishedDate,
		Category:      raw.Category,
		Title:         title,
		URL:           raw.URL,
		ContentHash:   raw.ContentHash,
	})
	if err != nil {
		return fmt.Errorf("create act %d: %w", raw.ExternalID, err)
	}

	if err := s.acts.AppendEvent(ctx, saved.ID, domain.EventCreated, raw); err != nil {
		return fmt.Errorf("append event for act %d: %w", raw.ExternalID, err)
	}

	if initialLoad {
		return nil
	}
	rec, err := domain.NewChangeDetected(domain.ChangeDetectedPayload{
		ExternalID: raw.ExternalID,
		Event:      domain.EventCreated,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.Enqueue(ctx, rec); err != nil {
		return fmt.Errorf("enqueue change for act %d: %w", raw.ExternalID, err)
	}
	return nil
}

func (s *Service) updateExisting(ctx context.Context, existing *domain.LegalAct, raw domain.RawAct, initialLoad bool) (bool, error) {
	title := s.safeTitle(ctx, raw)

	if equalHash(existing.ContentHash, raw.ContentHash) && existing.Title == title {
		return false, nil
	}

	existing.Title = title
	existing.Category = raw.Category
	existing.PublishedDate = raw.PublishedDate
	existing.URL = raw.URL
	existing.ContentHash = raw.ContentHash

	if _, err := s.acts.Update(ctx, existing); err != nil {
		return false, fmt.Errorf("update act %d: %w", raw.ExternalID, err)
	}
	if err := s.acts.AppendEvent(ctx, existing.ID, domain.EventUpdated, raw); err != nil {
		return false, fmt.Errorf("append event for act %d: %w", raw.ExternalID, err)
	}

	if initialLoad {
		return true, nil
	}
	rec, err := domain.NewChangeDetected(domain.ChangeDetectedPayload{
		ExternalID: raw.ExternalID,
		Event:      domain.EventUpdated,
		Updated:    true,
	})
	if err != nil {
		return false, err
	}
	if err := s.outbox.Enqueue(ctx, rec); err != nil {
		return false, fmt.Errorf("enqueue change for act %d: %w", raw.ExternalID, err)
	}
	return true, nil
}

func (s *Service) safeTitle(ctx context.Context, raw domain.RawAct) string {
	if len([]rune(raw.Title)) <= domain.MaxTitleLen {
		return raw.Title
	}
	s.log.WarnContext(ctx, "title truncated",
		slog.Int64("external_id", raw.ExternalID),
		slog.Int("original_len", len([]rune(raw.Title))))
	return string([]rune(raw.Title)[:domain.MaxTitleLen])
}

func equalHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
