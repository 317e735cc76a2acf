package domain

import (
	"time"

	"github.com/google/uuid"
)

// Supported interface locales.
const (
	LocaleAZ = "az"
	LocaleEN = "en"
)

// User is one Telegram chat identity, created on first contact.
type User struct {
	ID             uuid.UUID `db:"id"`
	TelegramChatID int64     `db:"telegram_chat_id"`
	Locale         string    `db:"locale"`
	CreatedAt      time.Time `db:"created_at"`
}
