package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxKind discriminates the payload shape of an outbox record.
type OutboxKind string

const (
	// OutboxChangeDetected is produced by ingestion and consumed by the
	// notification planner.
	OutboxChangeDetected OutboxKind = "ACT_CHANGE_DETECTED"
	// OutboxUserNotification is produced by the planner and consumed by the
	// sender.
	OutboxUserNotification OutboxKind = "USER_NOTIFICATION"
)

func (k OutboxKind) String() string { return string(k) }

// OutboxStatus is the delivery state of an outbox record. SENT and FAILED
// are terminal.
type OutboxStatus string

const (
	OutboxNew    OutboxStatus = "NEW"
	OutboxSent   OutboxStatus = "SENT"
	OutboxFailed OutboxStatus = "FAILED"
)

func (s OutboxStatus) String() string { return string(s) }

// MaxSendAttempts is the delivery retry ceiling. A record whose attempts
// reach this value transitions to FAILED and is never retried again.
const MaxSendAttempts = 5

// OutboxRecord is the at-least-once delivery unit. Producers only insert
// records with status NEW; the consumer of a kind owns all later state
// transitions.
type OutboxRecord struct {
	ID        uuid.UUID       `db:"id"`
	Kind      OutboxKind      `db:"kind"`
	Payload   json.RawMessage `db:"payload"`
	Status    OutboxStatus    `db:"status"`
	Attempts  int             `db:"attempts"`
	CreatedAt time.Time       `db:"created_at"`
}

// ChangeDetectedPayload is the payload of an ACT_CHANGE_DETECTED record.
type ChangeDetectedPayload struct {
	ExternalID int64     `json:"externalId"`
	Event      EventType `json:"event"`
	Updated    bool      `json:"updated,omitempty"`
}

// UserNotificationPayload is the payload of a USER_NOTIFICATION record. The
// title is already escaped for the delivery channel by the planner.
type UserNotificationPayload struct {
	TelegramChatID      int64  `json:"telegramChatId"`
	ExternalID          int64  `json:"externalId"`
	Title               string `json:"title"`
	Category            string `json:"category"`
	URL                 string `json:"url"`
	Updated             bool   `json:"updated,omitempty"`
	OriginalTitleLength int    `json:"originalTitleLength,omitempty"`
}

// NewChangeDetected builds a NEW outbox record announcing a created or
// updated act.
func NewChangeDetected(p ChangeDetectedPayload) (OutboxRecord, error) {
	return newRecord(OutboxChangeDetected, p)
}

// NewUserNotification builds a NEW outbox record carrying one user-facing
// notification.
func NewUserNotification(p UserNotificationPayload) (OutboxRecord, error) {
	return newRecord(OutboxUserNotification, p)
}

func newRecord(kind OutboxKind, payload any) (OutboxRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OutboxRecord{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return OutboxRecord{
		ID:      uuid.New(),
		Kind:    kind,
		Payload: raw,
		Status:  OutboxNew,
	}, nil
}

// DecodeChangeDetected decodes the payload of an ACT_CHANGE_DETECTED record.
func DecodeChangeDetected(rec OutboxRecord) (ChangeDetectedPayload, error) {
	var p ChangeDetectedPayload
	if rec.Kind != OutboxChangeDetected {
		return p, fmt.Errorf("outbox record %s: kind %s: %w", rec.ID, rec.Kind, ErrValidation)
	}
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return p, fmt.Errorf("outbox record %s: decode payload: %w", rec.ID, err)
	}
	return p, nil
}

// DecodeUserNotification decodes the payload of a USER_NOTIFICATION record.
func DecodeUserNotification(rec OutboxRecord) (UserNotificationPayload, error) {
	var p UserNotificationPayload
	if rec.Kind != OutboxUserNotification {
		return p, fmt.Errorf("outbox record %s: kind %s: %w", rec.ID, rec.Kind, ErrValidation)
	}
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return p, fmt.Errorf("outbox record %s: decode payload: %w", rec.ID, err)
	}
	return p, nil
}
