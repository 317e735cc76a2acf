// Package telegram wraps the Telegram Bot API: message formatting within
// the platform limits and the outbound sender.
package telegram

import (
	"strings"

	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// MessageLimit is the Telegram hard cap for one message text.
const MessageLimit = 4096

// safeTitleCap leaves slack below MessageLimit for the prefix, category and
// URL lines of a notification.
const safeTitleCap = 3000

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`,
	`(`, `\(`, `)`, `\)`, "~", "\\~", "`", "\\`",
	`>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`,
	`=`, `\=`, `|`, `\|`, `{`, `\{`, `}`, `\}`,
	`.`, `\.`, `!`, `\!`, `\`, `\\`,
)

// EscapeMarkdown backslash-escapes every character Telegram Markdown
// reserves.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// TruncateWithEllipsis cuts text to at most max runes, replacing the last
// rune with an ellipsis when something was cut.
func TruncateWithEllipsis(text string, max int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= max {
		return text, false
	}
	if max <= 1 {
		return string(runes[:max]), true
	}
	return string(runes[:max-1]) + "…", true
}

// SafeTitle is a notification title prepared for Telegram delivery.
type SafeTitle struct {
	Title          string
	Truncated      bool
	OriginalLength int
}

// BuildSafeTitle caps and escapes a raw act title so the whole notification
// stays within MessageLimit.
func BuildSafeTitle(rawTitle string) SafeTitle {
	value, truncated := TruncateWithEllipsis(rawTitle, safeTitleCap)
	return SafeTitle{
		Title:          EscapeMarkdown(value),
		Truncated:      truncated,
		OriginalLength: len([]rune(rawTitle)),
	}
}

// ComposeNotification renders one user notification as Markdown. The payload
// title is expected to be pre-escaped by the planner; unescaped titles from
// older payloads are escaped here. If the rendered text would exceed
// MessageLimit the title is trimmed, never below 20 runes.
func ComposeNotification(p domain.UserNotificationPayload) string {
	title := p.Title
	if !strings.Contains(title, `\`) {
		title = EscapeMarkdown(title)
	}

	text := renderNotification(title, p)
	if n := len([]rune(text)); n > MessageLimit {
		extra := n - MessageLimit
		allowed := len([]rune(title)) - extra - 10
		if allowed < 20 {
			allowed = 20
		}
		title = string([]rune(title)[:allowed]) + "…"
		text = renderNotification(title, p)
	}
	return text
}

func renderNotification(title string, p domain.UserNotificationPayload) string {
	prefix := "🆕 New act"
	if p.Updated {
		prefix = "🔁 Updated act"
	}
	return prefix + ":\n*" + title + "*\n_" + p.Category + "_\n" + p.URL
}
