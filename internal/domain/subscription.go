package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qanunbot/eqanun-notifier/internal/textmatch"
)

// SubscriptionType selects the matching predicate of a subscription.
type SubscriptionType string

const (
	SubscriptionAll      SubscriptionType = "ALL"
	SubscriptionCategory SubscriptionType = "CATEGORY"
	SubscriptionKeyword  SubscriptionType = "KEYWORD"
)

func (t SubscriptionType) String() string { return string(t) }

func (t SubscriptionType) IsValid() bool {
	switch t {
	case SubscriptionAll, SubscriptionCategory, SubscriptionKeyword:
		return true
	}
	return false
}

// Subscription is one user's interest filter. The triple
// (user, type, query) is unique; keyword queries are additionally
// deduplicated by their fuzzy-normalized form at creation time.
type Subscription struct {
	ID        uuid.UUID        `db:"id"`
	UserID    uuid.UUID        `db:"user_id"`
	Type      SubscriptionType `db:"type"`
	Query     *string          `db:"query"`
	IsActive  bool             `db:"is_active"`
	CreatedAt time.Time        `db:"created_at"`
}

// Matches reports whether the act is of interest to this subscription.
//
// KEYWORD uses substring containment of the normalized query within the
// normalized title. The fuzzy token machinery in textmatch is deliberately
// not wired here; it backs the duplicate-subscription guard only.
func (s Subscription) Matches(act LegalAct) bool {
	switch s.Type {
	case SubscriptionAll:
		return true
	case SubscriptionCategory:
		return s.Query != nil && strings.EqualFold(*s.Query, act.Category.String())
	case SubscriptionKeyword:
		if s.Query == nil {
			return false
		}
		q := textmatch.Normalize(*s.Query)
		if q == "" {
			return false
		}
		return strings.Contains(textmatch.Normalize(act.Title), q)
	}
	return false
}

// QueryLabel renders the query for listings; empty for ALL subscriptions.
func (s Subscription) QueryLabel() string {
	if s.Query == nil {
		return ""
	}
	return *s.Query
}

// SubscriptionWithUser joins a subscription with its owning user, as needed
// by notification planning.
type SubscriptionWithUser struct {
	Subscription
	User User
}
