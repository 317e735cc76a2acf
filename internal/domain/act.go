package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActCategory is the normalized category of a legal act.
type ActCategory string

const (
	CategoryLaw      ActCategory = "LAW"
	CategoryDecree   ActCategory = "DECREE"
	CategoryDecision ActCategory = "DECISION"
	CategoryOther    ActCategory = "OTHER"
)

func (c ActCategory) String() string { return string(c) }

func (c ActCategory) IsValid() bool {
	switch c {
	case CategoryLaw, CategoryDecree, CategoryDecision, CategoryOther:
		return true
	}
	return false
}

// MaxTitleLen caps stored act titles. Longer titles are truncated at insert
// time; truncation is logged, not treated as an error.
const MaxTitleLen = 12000

// LegalAct is one published legal act from the external catalog.
// ExternalID is the source-assigned identifier and is unique; an act is
// created once and thereafter only updated in place.
type LegalAct struct {
	ID            uuid.UUID   `db:"id"`
	ExternalID    int64       `db:"external_id"`
	PublishedDate *time.Time  `db:"published_date"`
	Category      ActCategory `db:"category"`
	Title         string      `db:"title"`
	Summary       *string     `db:"summary"`
	URL           string      `db:"url"`
	ContentHash   *string     `db:"content_hash"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

// RawAct is an ingestion candidate mapped from one source item. It is also
// persisted verbatim as the snapshot of the change event it triggered.
type RawAct struct {
	ExternalID    int64       `json:"externalId"`
	Title         string      `json:"title"`
	Category      ActCategory `json:"category"`
	URL           string      `json:"url"`
	PublishedDate *time.Time  `json:"publishedDate,omitempty"`
	ContentHash   *string     `json:"contentHash,omitempty"`
}

// EventType marks whether a change event recorded a creation or an update.
type EventType string

const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
)

func (t EventType) String() string { return string(t) }

// ActEvent is an append-only record that an act was created or updated.
// Events are never mutated after creation and cascade with their act.
type ActEvent struct {
	ID         uuid.UUID `db:"id"`
	ActID      uuid.UUID `db:"act_id"`
	Type       EventType `db:"type"`
	DetectedAt time.Time `db:"detected_at"`
	Snapshot   RawAct    `db:"snapshot"`
}
