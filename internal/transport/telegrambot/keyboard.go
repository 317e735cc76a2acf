package telegrambot

import (
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// Callback data prefixes.
const (
	cbSubAll     = "SUB_ALL"
	cbSubCat     = "SUB_CAT:"
	cbSubKeyword = "SUB_KEYWORD"
	cbSubType    = "SUB_TYPE:"
	cbUnsub      = "UNSUB:"
	cbLang       = "LANG:"
)

// maxTopicButtons keeps the /topics keyboard usable.
const maxTopicButtons = 20

func subscribeKeyboard(locale string) tgbotapi.InlineKeyboardMarkup {
	all, laws, decrees, decisions, keyword :=
		"✨ Hamısı", "📜 Qanunlar (LAW)", "🖊️ Fərmanlar (DECREE)", "📎 Sərəncamlar (DECISION)", "🔎 Açar söz…"
	if locale == domain.LocaleEN {
		all, laws, decrees, decisions, keyword =
			"✨ All", "📜 Laws (LAW)", "🖊️ Decrees (DECREE)", "📎 Decisions (DECISION)", "🔎 Keyword…"
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(all, cbSubAll)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(laws, cbSubCat+"LAW")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(decrees, cbSubCat+"DECREE")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(decisions, cbSubCat+"DECISION")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(keyword, cbSubKeyword)),
	)
}

func topicsKeyboard(typeNames []string) tgbotapi.InlineKeyboardMarkup {
	if len(typeNames) > maxTopicButtons {
		typeNames = typeNames[:maxTopicButtons]
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(typeNames))
	for _, name := range typeNames {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(name, cbSubType+url.QueryEscape(name)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func manageKeyboard(subs []domain.Subscription) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(subs))
	for _, sub := range subs {
		label := sub.Type.String()
		if q := sub.QueryLabel(); q != "" {
			label += ": " + q
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label+" ✖", cbUnsub+sub.ID.String()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func langKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇦🇿 AZ", cbLang+domain.LocaleAZ),
			tgbotapi.NewInlineKeyboardButtonData("🇬🇧 EN", cbLang+domain.LocaleEN),
		),
	)
}

func botCommands(locale string) []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: T(locale, "cmd_start", nil)},
		{Command: "subscribe", Description: T(locale, "cmd_subscribe", nil)},
		{Command: "list", Description: T(locale, "cmd_list", nil)},
		{Command: "manage", Description: T(locale, "cmd_manage", nil)},
		{Command: "topics", Description: T(locale, "cmd_topics", nil)},
		{Command: "lang", Description: T(locale, "cmd_lang", nil)},
		{Command: "help", Description: T(locale, "cmd_help", nil)},
	}
}
