package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type userRepoMock struct {
	GetByChatIDFunc  func(ctx context.Context, chatID int64) (*domain.User, error)
	CreateFunc       func(ctx context.Context, chatID int64) (*domain.User, error)
	UpdateLocaleFunc func(ctx context.Context, id uuid.UUID, locale string) (*domain.User, error)
}

func (m *userRepoMock) GetByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	return m.GetByChatIDFunc(ctx, chatID)
}

func (m *userRepoMock) Create(ctx context.Context, chatID int64) (*domain.User, error) {
	return m.CreateFunc(ctx, chatID)
}

func (m *userRepoMock) UpdateLocale(ctx context.Context, id uuid.UUID, locale string) (*domain.User, error) {
	return m.UpdateLocaleFunc(ctx, id, locale)
}

type subscriptionRepoMock struct {
	CreateFunc             func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error)
	GetByUniqueFunc        func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error)
	ListByUserFunc         func(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)
	ListKeywordsByUserFunc func(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)
	DeleteFunc             func(ctx context.Context, userID, id uuid.UUID) error
}

func (m *subscriptionRepoMock) Create(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
	return m.CreateFunc(ctx, userID, typ, query)
}

func (m *subscriptionRepoMock) GetByUnique(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
	return m.GetByUniqueFunc(ctx, userID, typ, query)
}

func (m *subscriptionRepoMock) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	return m.ListByUserFunc(ctx, userID)
}

func (m *subscriptionRepoMock) ListKeywordsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	return m.ListKeywordsByUserFunc(ctx, userID)
}

func (m *subscriptionRepoMock) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return m.DeleteFunc(ctx, userID, id)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestService(users userRepo, subs subscriptionRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, users, subs)
}

func ptr[T any](v T) *T { return &v }

func keywordSub(userID uuid.UUID, query string) domain.Subscription {
	return domain.Subscription{
		ID:       uuid.New(),
		UserID:   userID,
		Type:     domain.SubscriptionKeyword,
		Query:    ptr(query),
		IsActive: true,
	}
}

// ---------------------------------------------------------------------------
// RegisterUser tests
// ---------------------------------------------------------------------------

func TestService_RegisterUser_ExistingUser(t *testing.T) {
	t.Parallel()

	expected := &domain.User{ID: uuid.New(), TelegramChatID: 100, Locale: domain.LocaleAZ}
	users := &userRepoMock{
		GetByChatIDFunc: func(ctx context.Context, chatID int64) (*domain.User, error) {
			return expected, nil
		},
	}

	svc := newTestService(users, nil)
	user, err := svc.RegisterUser(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, expected, user)
}

func TestService_RegisterUser_FirstContactCreates(t *testing.T) {
	t.Parallel()

	expected := &domain.User{ID: uuid.New(), TelegramChatID: 100, Locale: domain.LocaleAZ}
	users := &userRepoMock{
		GetByChatIDFunc: func(ctx context.Context, chatID int64) (*domain.User, error) {
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, chatID int64) (*domain.User, error) {
			assert.Equal(t, int64(100), chatID)
			return expected, nil
		},
	}

	svc := newTestService(users, nil)
	user, err := svc.RegisterUser(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, expected, user)
}

func TestService_RegisterUser_CreationRaceResolves(t *testing.T) {
	t.Parallel()

	expected := &domain.User{ID: uuid.New(), TelegramChatID: 100}
	calls := 0
	users := &userRepoMock{
		GetByChatIDFunc: func(ctx context.Context, chatID int64) (*domain.User, error) {
			calls++
			if calls == 1 {
				return nil, domain.ErrNotFound
			}
			return expected, nil
		},
		CreateFunc: func(ctx context.Context, chatID int64) (*domain.User, error) {
			return nil, domain.ErrAlreadyExists
		},
	}

	svc := newTestService(users, nil)
	user, err := svc.RegisterUser(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, expected, user)
}

// ---------------------------------------------------------------------------
// Add tests
// ---------------------------------------------------------------------------

func TestService_Add_CategoryUppercased(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	subs := &subscriptionRepoMock{
		GetByUniqueFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			require.NotNil(t, query)
			assert.Equal(t, "LAW", *query)
			return &domain.Subscription{ID: uuid.New(), UserID: userID, Type: typ, Query: query, IsActive: true}, nil
		},
	}

	svc := newTestService(nil, subs)
	res, err := svc.Add(context.Background(), user, domain.SubscriptionCategory, ptr("law"))

	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestService_Add_AllDiscardsQuery(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	subs := &subscriptionRepoMock{
		GetByUniqueFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			assert.Nil(t, query)
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			assert.Nil(t, query)
			return &domain.Subscription{ID: uuid.New(), UserID: userID, Type: typ, IsActive: true}, nil
		},
	}

	svc := newTestService(nil, subs)
	res, err := svc.Add(context.Background(), user, domain.SubscriptionAll, ptr("ignored"))

	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestService_Add_KeywordDuplicateByNormalization(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	existing := keywordSub(user.ID, "vergi")

	subs := &subscriptionRepoMock{
		ListKeywordsByUserFunc: func(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
			return []domain.Subscription{existing}, nil
		},
		CreateFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			t.Error("Create() called for duplicate keyword")
			return nil, nil
		},
	}

	svc := newTestService(nil, subs)

	// Case, trailing space and Azerbaijani İ all fold to the same form.
	res, err := svc.Add(context.Background(), user, domain.SubscriptionKeyword, ptr("VERGİ "))

	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, existing.ID, res.Subscription.ID)
}

func TestService_Add_KeywordDuplicateByFuzzyToken(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	existing := keywordSub(user.ID, "vergilər")

	subs := &subscriptionRepoMock{
		ListKeywordsByUserFunc: func(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
			return []domain.Subscription{existing}, nil
		},
		CreateFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			t.Error("Create() called for near-duplicate keyword")
			return nil, nil
		},
	}

	svc := newTestService(nil, subs)
	res, err := svc.Add(context.Background(), user, domain.SubscriptionKeyword, ptr("vergi"))

	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, existing.ID, res.Subscription.ID)
}

func TestService_Add_KeywordDistinctTermCreated(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	subs := &subscriptionRepoMock{
		ListKeywordsByUserFunc: func(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
			return []domain.Subscription{keywordSub(user.ID, "vergi")}, nil
		},
		GetByUniqueFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			return nil, domain.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			return &domain.Subscription{ID: uuid.New(), UserID: userID, Type: typ, Query: query, IsActive: true}, nil
		},
	}

	svc := newTestService(nil, subs)
	res, err := svc.Add(context.Background(), user, domain.SubscriptionKeyword, ptr("gömrük"))

	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestService_Add_CreationRaceReturnsExisting(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	winner := &domain.Subscription{ID: uuid.New(), UserID: user.ID, Type: domain.SubscriptionCategory, Query: ptr("LAW")}

	lookups := 0
	subs := &subscriptionRepoMock{
		GetByUniqueFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			lookups++
			if lookups == 1 {
				return nil, domain.ErrNotFound
			}
			return winner, nil
		},
		CreateFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			return nil, domain.ErrAlreadyExists
		},
	}

	svc := newTestService(nil, subs)
	res, err := svc.Add(context.Background(), user, domain.SubscriptionCategory, ptr("LAW"))

	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winner, res.Subscription)
}

func TestService_Add_Validation(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	svc := newTestService(nil, nil)

	tests := []struct {
		name  string
		typ   domain.SubscriptionType
		query *string
	}{
		{name: "unknown type", typ: "WEEKLY_DIGEST", query: nil},
		{name: "category without query", typ: domain.SubscriptionCategory, query: nil},
		{name: "keyword without query", typ: domain.SubscriptionKeyword, query: nil},
		{name: "blank keyword", typ: domain.SubscriptionKeyword, query: ptr("   ")},
		{name: "keyword with no matchable content", typ: domain.SubscriptionKeyword, query: ptr("!!! ...")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(context.Background(), user, tt.typ, tt.query)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

// ---------------------------------------------------------------------------
// List / Remove / SetLocale tests
// ---------------------------------------------------------------------------

func TestService_List(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	expected := []domain.Subscription{keywordSub(user.ID, "vergi")}

	subs := &subscriptionRepoMock{
		ListByUserFunc: func(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
			assert.Equal(t, user.ID, userID)
			return expected, nil
		},
	}

	svc := newTestService(nil, subs)
	got, err := svc.List(context.Background(), user)

	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestService_Remove_NotFound(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	subs := &subscriptionRepoMock{
		DeleteFunc: func(ctx context.Context, userID, id uuid.UUID) error {
			return domain.ErrNotFound
		},
	}

	svc := newTestService(nil, subs)
	err := svc.Remove(context.Background(), user, uuid.New())

	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_SetLocale(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New(), Locale: domain.LocaleAZ}

	t.Run("valid locale", func(t *testing.T) {
		users := &userRepoMock{
			UpdateLocaleFunc: func(ctx context.Context, id uuid.UUID, locale string) (*domain.User, error) {
				assert.Equal(t, domain.LocaleEN, locale)
				updated := *user
				updated.Locale = locale
				return &updated, nil
			},
		}

		svc := newTestService(users, nil)
		updated, err := svc.SetLocale(context.Background(), user, domain.LocaleEN)

		require.NoError(t, err)
		assert.Equal(t, domain.LocaleEN, updated.Locale)
	})

	t.Run("unknown locale rejected", func(t *testing.T) {
		svc := newTestService(nil, nil)
		_, err := svc.SetLocale(context.Background(), user, "ru")
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestService_Add_ErrorFromRepoWrapped(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New()}
	boom := errors.New("connection refused")
	subs := &subscriptionRepoMock{
		GetByUniqueFunc: func(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error) {
			return nil, boom
		},
	}

	svc := newTestService(nil, subs)
	_, err := svc.Add(context.Background(), user, domain.SubscriptionCategory, ptr("LAW"))

	require.ErrorIs(t, err, boom)
}
