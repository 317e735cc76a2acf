// Package subscription implements user registration and subscription
// management.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/qanunbot/eqanun-notifier/internal/domain"
	"github.com/qanunbot/eqanun-notifier/internal/textmatch"
)

// userRepo defines the user repository interface needed by the subscription
// service.
type userRepo interface {
	GetByChatID(ctx context.Context, chatID int64) (*domain.User, error)
	Create(ctx context.Context, chatID int64) (*domain.User, error)
	UpdateLocale(ctx context.Context, id uuid.UUID, locale string) (*domain.User, error)
}

// subscriptionRepo defines the subscription repository interface needed by
// the subscription service.
type subscriptionRepo interface {
	Create(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error)
	GetByUnique(ctx context.Context, userID uuid.UUID, typ domain.SubscriptionType, query *string) (*domain.Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)
	ListKeywordsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// Service implements subscription management operations.
type Service struct {
	log   *slog.Logger
	users userRepo
	subs  subscriptionRepo
}

// NewService creates a new subscription service instance.
func NewService(logger *slog.Logger, users userRepo, subs subscriptionRepo) *Service {
	return &Service{
		log:   logger.With("service", "subscription"),
		users: users,
		subs:  subs,
	}
}

// RegisterUser returns the user owning the chat, creating one on first
// contact. Concurrent first contacts resolve to the same row.
func (s *Service) RegisterUser(ctx context.Context, chatID int64) (*domain.User, error) {
	user, err := s.users.GetByChatID(ctx, chatID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("subscription.RegisterUser: %w", err)
	}

	user, err = s.users.Create(ctx, chatID)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost the race against a parallel first contact.
		user, err = s.users.GetByChatID(ctx, chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("subscription.RegisterUser: %w", err)
	}

	s.log.InfoContext(ctx, "user registered", slog.Int64("chat_id", chatID))
	return user, nil
}

// AddResult reports the outcome of Add. When Created is false, Subscription
// is the pre-existing equivalent subscription.
type AddResult struct {
	Created      bool
	Subscription *domain.Subscription
}

// Add creates a subscription for the user. CATEGORY queries are upper-cased,
// ALL discards its query, and a KEYWORD whose normalized form collides with
// an existing keyword of the same user is rejected as a duplicate.
func (s *Service) Add(ctx context.Context, user *domain.User, typ domain.SubscriptionType, query *string) (AddResult, error) {
	if !typ.IsValid() {
		return AddResult{}, fmt.Errorf("subscription type %q: %w", typ, domain.ErrValidation)
	}

	query, err := normalizeQuery(typ, query)
	if err != nil {
		return AddResult{}, err
	}

	if typ == domain.SubscriptionKeyword {
		clash, err := s.findKeywordClash(ctx, user.ID, *query)
		if err != nil {
			return AddResult{}, fmt.Errorf("subscription.Add: %w", err)
		}
		if clash != nil {
			return AddResult{Created: false, Subscription: clash}, nil
		}
	}

	existing, err := s.subs.GetByUnique(ctx, user.ID, typ, query)
	if err == nil {
		return AddResult{Created: false, Subscription: existing}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return AddResult{}, fmt.Errorf("subscription.Add: %w", err)
	}

	created, err := s.subs.Create(ctx, user.ID, typ, query)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost the race against a parallel identical Add.
		existing, err := s.subs.GetByUnique(ctx, user.ID, typ, query)
		if err != nil {
			return AddResult{}, fmt.Errorf("subscription.Add: %w", err)
		}
		return AddResult{Created: false, Subscription: existing}, nil
	}
	if err != nil {
		return AddResult{}, fmt.Errorf("subscription.Add: %w", err)
	}

	s.log.InfoContext(ctx, "subscription added",
		slog.String("user_id", user.ID.String()),
		slog.String("type", typ.String()),
		slog.String("query", created.QueryLabel()))
	return AddResult{Created: true, Subscription: created}, nil
}

// List returns the user's active subscriptions.
func (s *Service) List(ctx context.Context, user *domain.User) ([]domain.Subscription, error) {
	subs, err := s.subs.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("subscription.List: %w", err)
	}
	return subs, nil
}

// Remove deletes one of the user's subscriptions.
func (s *Service) Remove(ctx context.Context, user *domain.User, id uuid.UUID) error {
	if err := s.subs.Delete(ctx, user.ID, id); err != nil {
		return fmt.Errorf("subscription.Remove: %w", err)
	}
	s.log.InfoContext(ctx, "subscription removed",
		slog.String("user_id", user.ID.String()),
		slog.String("subscription_id", id.String()))
	return nil
}

// SetLocale switches the user's interface language.
func (s *Service) SetLocale(ctx context.Context, user *domain.User, locale string) (*domain.User, error) {
	if locale != domain.LocaleAZ && locale != domain.LocaleEN {
		return nil, fmt.Errorf("locale %q: %w", locale, domain.ErrValidation)
	}

	updated, err := s.users.UpdateLocale(ctx, user.ID, locale)
	if err != nil {
		return nil, fmt.Errorf("subscription.SetLocale: %w", err)
	}
	return updated, nil
}

func normalizeQuery(typ domain.SubscriptionType, query *string) (*string, error) {
	switch typ {
	case domain.SubscriptionAll:
		return nil, nil
	case domain.SubscriptionCategory:
		if query == nil || strings.TrimSpace(*query) == "" {
			return nil, fmt.Errorf("category query required: %w", domain.ErrValidation)
		}
		q := strings.ToUpper(strings.TrimSpace(*query))
		return &q, nil
	case domain.SubscriptionKeyword:
		if query == nil || strings.TrimSpace(*query) == "" {
			return nil, fmt.Errorf("keyword query required: %w", domain.ErrValidation)
		}
		q := strings.TrimSpace(*query)
		if textmatch.Normalize(q) == "" {
			return nil, fmt.Errorf("keyword query %q has no matchable content: %w", q, domain.ErrValidation)
		}
		return &q, nil
	}
	return nil, fmt.Errorf("subscription type %q: %w", typ, domain.ErrValidation)
}

// findKeywordClash returns an existing keyword subscription that is, after
// normalization and fuzzy token comparison, the same term as the new query.
func (s *Service) findKeywordClash(ctx context.Context, userID uuid.UUID, query string) (*domain.Subscription, error) {
	existing, err := s.subs.ListKeywordsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	newNorm := textmatch.Normalize(query)
	newTokens := textmatch.QueryTokens(query)

	for i, sub := range existing {
		if sub.Query == nil {
			continue
		}
		if textmatch.Normalize(*sub.Query) == newNorm {
			return &existing[i], nil
		}
		if fuzzySameTerm(newTokens, textmatch.QueryTokens(*sub.Query)) {
			return &existing[i], nil
		}
	}
	return nil, nil
}

// fuzzySameTerm treats two token lists as the same term when they have equal
// length and every token fuzzy-matches its counterpart.
func fuzzySameTerm(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if !textmatch.FuzzyTokenMatch(a[i], b[i]) {
			return false
		}
	}
	return true
}
