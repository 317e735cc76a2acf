package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanunbot/eqanun-notifier/internal/adapter/eqanun"
	"github.com/qanunbot/eqanun-notifier/internal/config"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type apiMock struct {
	FetchPageFunc func(ctx context.Context, start, length int) (eqanun.Page, error)
}

func (m *apiMock) FetchPage(ctx context.Context, start, length int) (eqanun.Page, error) {
	return m.FetchPageFunc(ctx, start, length)
}

type actRepoMock struct {
	GetByExternalIDFunc func(ctx context.Context, externalID int64) (*domain.LegalAct, error)
	CreateFunc          func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error)
	UpdateFunc          func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error)
	AppendEventFunc     func(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error
}

func (m *actRepoMock) GetByExternalID(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
	return m.GetByExternalIDFunc(ctx, externalID)
}

func (m *actRepoMock) Create(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
	return m.CreateFunc(ctx, act)
}

func (m *actRepoMock) Update(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
	return m.UpdateFunc(ctx, act)
}

func (m *actRepoMock) AppendEvent(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
	return m.AppendEventFunc(ctx, actID, eventType, snapshot)
}

type stateRepoMock struct {
	LastSeenExternalIDFunc    func(ctx context.Context) (*int64, error)
	SetLastSeenExternalIDFunc func(ctx context.Context, id int64) error
}

func (m *stateRepoMock) LastSeenExternalID(ctx context.Context) (*int64, error) {
	return m.LastSeenExternalIDFunc(ctx)
}

func (m *stateRepoMock) SetLastSeenExternalID(ctx context.Context, id int64) error {
	return m.SetLastSeenExternalIDFunc(ctx, id)
}

type outboxRepoMock struct {
	EnqueueFunc func(ctx context.Context, rec domain.OutboxRecord) error
}

func (m *outboxRepoMock) Enqueue(ctx context.Context, rec domain.OutboxRecord) error {
	return m.EnqueueFunc(ctx, rec)
}

type txManagerMock struct{}

func (m *txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sourceCfg() config.SourceConfig {
	return config.SourceConfig{PageSize: 2, MaxPageOffset: 10}
}

func item(id int64, title string) eqanun.Item {
	return eqanun.Item{ID: id, Title: title, TypeName: "AZƏRBAYCAN RESPUBLİKASININ QANUNU"}
}

func pagesAPI(pages ...eqanun.Page) *apiMock {
	return &apiMock{
		FetchPageFunc: func(ctx context.Context, start, length int) (eqanun.Page, error) {
			idx := start / length
			if idx >= len(pages) {
				return eqanun.Page{}, nil
			}
			return pages[idx], nil
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

// ---------------------------------------------------------------------------
// Synchronize tests
// ---------------------------------------------------------------------------

func TestService_Synchronize_InitialLoadSuppressesOutbox(t *testing.T) {
	t.Parallel()

	total := 3
	api := pagesAPI(
		eqanun.Page{Items: []eqanun.Item{item(103, "c"), item(102, "b")}, TotalCount: total},
		eqanun.Page{Items: []eqanun.Item{item(101, "a")}, TotalCount: total},
	)

	var createdIDs []int64
	acts := &actRepoMock{
		GetByExternalIDFunc: func(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
			createdIDs = append(createdIDs, act.ExternalID)
			saved := *act
			saved.ID = uuid.New()
			return &saved, nil
		},
		AppendEventFunc: func(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
			assert.Equal(t, domain.EventCreated, eventType)
			return nil
		},
	}

	var savedWatermark int64
	state := &stateRepoMock{
		LastSeenExternalIDFunc: func(ctx context.Context) (*int64, error) { return nil, nil },
		SetLastSeenExternalIDFunc: func(ctx context.Context, id int64) error {
			savedWatermark = id
			return nil
		},
	}

	outbox := &outboxRepoMock{
		EnqueueFunc: func(ctx context.Context, rec domain.OutboxRecord) error {
			t.Errorf("Enqueue() called during initial load: %+v", rec)
			return nil
		},
	}

	svc := NewService(testLogger(), api, acts, state, outbox, &txManagerMock{}, sourceCfg())
	res, err := svc.Synchronize(context.Background())

	require.NoError(t, err)
	assert.True(t, res.InitialLoad)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, int64(103), res.MaxID)
	// Candidates applied in ascending external id order.
	assert.Equal(t, []int64{101, 102, 103}, createdIDs)
	assert.Equal(t, int64(103), savedWatermark)
}

func TestService_Synchronize_IncrementalStopsOnSeenPage(t *testing.T) {
	t.Parallel()

	api := pagesAPI(
		eqanun.Page{Items: []eqanun.Item{item(105, "e"), item(104, "d")}, TotalCount: 100},
		eqanun.Page{Items: []eqanun.Item{item(103, "c"), item(102, "b")}, TotalCount: 100},
		// Never reached: previous page had nothing new.
		eqanun.Page{Items: []eqanun.Item{item(101, "a")}, TotalCount: 100},
	)

	var created, enqueued []int64
	acts := &actRepoMock{
		GetByExternalIDFunc: func(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
			created = append(created, act.ExternalID)
			saved := *act
			saved.ID = uuid.New()
			return &saved, nil
		},
		AppendEventFunc: func(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
			return nil
		},
	}

	state := &stateRepoMock{
		LastSeenExternalIDFunc:    func(ctx context.Context) (*int64, error) { return int64Ptr(103), nil },
		SetLastSeenExternalIDFunc: func(ctx context.Context, id int64) error { return nil },
	}

	outbox := &outboxRepoMock{
		EnqueueFunc: func(ctx context.Context, rec domain.OutboxRecord) error {
			p, err := domain.DecodeChangeDetected(rec)
			require.NoError(t, err)
			assert.Equal(t, domain.EventCreated, p.Event)
			enqueued = append(enqueued, p.ExternalID)
			return nil
		},
	}

	svc := NewService(testLogger(), api, acts, state, outbox, &txManagerMock{}, sourceCfg())
	res, err := svc.Synchronize(context.Background())

	require.NoError(t, err)
	assert.False(t, res.InitialLoad)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, int64(105), res.MaxID)
	assert.Equal(t, []int64{104, 105}, created)
	assert.Equal(t, []int64{104, 105}, enqueued)
}

func TestService_Synchronize_NoNewActs(t *testing.T) {
	t.Parallel()

	api := pagesAPI(
		eqanun.Page{Items: []eqanun.Item{item(103, "c"), item(102, "b")}, TotalCount: 100},
	)

	state := &stateRepoMock{
		LastSeenExternalIDFunc: func(ctx context.Context) (*int64, error) { return int64Ptr(103), nil },
		SetLastSeenExternalIDFunc: func(ctx context.Context, id int64) error {
			t.Error("SetLastSeenExternalID() called with no new acts")
			return nil
		},
	}

	svc := NewService(testLogger(), api, nil, state, nil, &txManagerMock{}, sourceCfg())
	res, err := svc.Synchronize(context.Background())

	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Scanned)
	assert.Equal(t, int64(103), res.MaxID)
}

func TestService_Synchronize_UpdateOnChangedTitle(t *testing.T) {
	t.Parallel()

	existingID := uuid.New()
	api := pagesAPI(
		eqanun.Page{Items: []eqanun.Item{item(104, "renamed act")}, TotalCount: 100},
	)

	var updatedCalled bool
	acts := &actRepoMock{
		GetByExternalIDFunc: func(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
			return &domain.LegalAct{ID: existingID, ExternalID: 104, Title: "old title"}, nil
		},
		UpdateFunc: func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
			updatedCalled = true
			assert.Equal(t, "renamed act", act.Title)
			return act, nil
		},
		AppendEventFunc: func(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
			assert.Equal(t, existingID, actID)
			assert.Equal(t, domain.EventUpdated, eventType)
			return nil
		},
	}

	state := &stateRepoMock{
		LastSeenExternalIDFunc:    func(ctx context.Context) (*int64, error) { return int64Ptr(103), nil },
		SetLastSeenExternalIDFunc: func(ctx context.Context, id int64) error { return nil },
	}

	var enqueuedUpdated bool
	outbox := &outboxRepoMock{
		EnqueueFunc: func(ctx context.Context, rec domain.OutboxRecord) error {
			p, err := domain.DecodeChangeDetected(rec)
			require.NoError(t, err)
			assert.Equal(t, domain.EventUpdated, p.Event)
			assert.True(t, p.Updated)
			enqueuedUpdated = true
			return nil
		},
	}

	svc := NewService(testLogger(), api, acts, state, outbox, &txManagerMock{}, sourceCfg())
	res, err := svc.Synchronize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.True(t, updatedCalled)
	assert.True(t, enqueuedUpdated)
}

func TestService_Synchronize_UnchangedActIsIdempotent(t *testing.T) {
	t.Parallel()

	api := pagesAPI(
		eqanun.Page{Items: []eqanun.Item{item(104, "same title")}, TotalCount: 100},
	)

	acts := &actRepoMock{
		GetByExternalIDFunc: func(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
			return &domain.LegalAct{ID: uuid.New(), ExternalID: 104, Title: "same title"}, nil
		},
		UpdateFunc: func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
			t.Error("Update() called for unchanged act")
			return act, nil
		},
		AppendEventFunc: func(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
			t.Error("AppendEvent() called for unchanged act")
			return nil
		},
	}

	var savedWatermark int64
	state := &stateRepoMock{
		LastSeenExternalIDFunc: func(ctx context.Context) (*int64, error) { return int64Ptr(103), nil },
		SetLastSeenExternalIDFunc: func(ctx context.Context, id int64) error {
			savedWatermark = id
			return nil
		},
	}

	outbox := &outboxRepoMock{
		EnqueueFunc: func(ctx context.Context, rec domain.OutboxRecord) error {
			t.Error("Enqueue() called for unchanged act")
			return nil
		},
	}

	svc := NewService(testLogger(), api, acts, state, outbox, &txManagerMock{}, sourceCfg())
	res, err := svc.Synchronize(context.Background())

	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Updated)
	// Watermark still advances past the rescanned act.
	assert.Equal(t, int64(104), savedWatermark)
}

func TestService_Synchronize_IncrementalSafetyLimit(t *testing.T) {
	t.Parallel()

	// Every page returns fresh ids so pagination never stops naturally.
	next := int64(1000)
	api := &apiMock{
		FetchPageFunc: func(ctx context.Context, start, length int) (eqanun.Page, error) {
			items := make([]eqanun.Item, length)
			for i := range items {
				next++
				items[i] = item(next, fmt.Sprintf("act %d", next))
			}
			return eqanun.Page{Items: items, TotalCount: 1 << 20}, nil
		},
	}

	acts := &actRepoMock{
		GetByExternalIDFunc: func(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
			saved := *act
			saved.ID = uuid.New()
			return &saved, nil
		},
		AppendEventFunc: func(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
			return nil
		},
	}

	state := &stateRepoMock{
		LastSeenExternalIDFunc:    func(ctx context.Context) (*int64, error) { return int64Ptr(500), nil },
		SetLastSeenExternalIDFunc: func(ctx context.Context, id int64) error { return nil },
	}

	outbox := &outboxRepoMock{
		EnqueueFunc: func(ctx context.Context, rec domain.OutboxRecord) error { return nil },
	}

	cfg := config.SourceConfig{PageSize: 2, MaxPageOffset: 6}
	svc := NewService(testLogger(), api, acts, state, outbox, &txManagerMock{}, cfg)
	res, err := svc.Synchronize(context.Background())

	require.NoError(t, err)
	// Offsets 0,2,4,6 are fetched; the next offset 8 exceeds the limit.
	assert.Equal(t, 8, res.Scanned)
}

func TestService_Synchronize_FetchErrorKeepsCollected(t *testing.T) {
	t.Parallel()

	api := &apiMock{
		FetchPageFunc: func(ctx context.Context, start, length int) (eqanun.Page, error) {
			if start == 0 {
				return eqanun.Page{Items: []eqanun.Item{item(105, "e"), item(104, "d")}, TotalCount: 100}, nil
			}
			return eqanun.Page{}, errors.New("connection reset")
		},
	}

	var created []int64
	acts := &actRepoMock{
		GetByExternalIDFunc: func(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
			created = append(created, act.ExternalID)
			saved := *act
			saved.ID = uuid.New()
			return &saved, nil
		},
		AppendEventFunc: func(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
			return nil
		},
	}

	state := &stateRepoMock{
		LastSeenExternalIDFunc:    func(ctx context.Context) (*int64, error) { return int64Ptr(100), nil },
		SetLastSeenExternalIDFunc: func(ctx context.Context, id int64) error { return nil },
	}

	outbox := &outboxRepoMock{
		EnqueueFunc: func(ctx context.Context, rec domain.OutboxRecord) error { return nil },
	}

	svc := NewService(testLogger(), api, acts, state, outbox, &txManagerMock{}, sourceCfg())
	res, err := svc.Synchronize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{104, 105}, created)
	assert.Equal(t, 2, res.Created)
}

func TestService_Synchronize_OversizedTitleTruncated(t *testing.T) {
	t.Parallel()

	longTitle := strings.Repeat("ə", domain.MaxTitleLen+500)
	api := pagesAPI(
		eqanun.Page{Items: []eqanun.Item{item(104, longTitle)}, TotalCount: 100},
	)

	acts := &actRepoMock{
		GetByExternalIDFunc: func(ctx context.Context, externalID int64) (*domain.LegalAct, error) {
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, act *domain.LegalAct) (*domain.LegalAct, error) {
			assert.Len(t, []rune(act.Title), domain.MaxTitleLen)
			saved := *act
			saved.ID = uuid.New()
			return &saved, nil
		},
		AppendEventFunc: func(ctx context.Context, actID uuid.UUID, eventType domain.EventType, snapshot domain.RawAct) error {
			// The snapshot keeps the original, untruncated title.
			assert.Len(t, []rune(snapshot.Title), domain.MaxTitleLen+500)
			return nil
		},
	}

	state := &stateRepoMock{
		LastSeenExternalIDFunc:    func(ctx context.Context) (*int64, error) { return int64Ptr(103), nil },
		SetLastSeenExternalIDFunc: func(ctx context.Context, id int64) error { return nil },
	}

	outbox := &outboxRepoMock{
		EnqueueFunc: func(ctx context.Context, rec domain.OutboxRecord) error { return nil },
	}

	svc := NewService(testLogger(), api, acts, state, outbox, &txManagerMock{}, sourceCfg())
	_, err := svc.Synchronize(context.Background())
	require.NoError(t, err)
}
