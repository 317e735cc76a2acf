// Package telegrambot implements the interactive bot transport: command and
// callback handlers over long polling.
package telegrambot

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/qanunbot/eqanun-notifier/internal/config"
	"github.com/qanunbot/eqanun-notifier/internal/domain"
	"github.com/qanunbot/eqanun-notifier/internal/service/ingest"
	"github.com/qanunbot/eqanun-notifier/internal/service/subscription"
)

// subscriptionService defines the subscription operations the bot exposes.
type subscriptionService interface {
	RegisterUser(ctx context.Context, chatID int64) (*domain.User, error)
	Add(ctx context.Context, user *domain.User, typ domain.SubscriptionType, query *string) (subscription.AddResult, error)
	List(ctx context.Context, user *domain.User) ([]domain.Subscription, error)
	Remove(ctx context.Context, user *domain.User, id uuid.UUID) error
	SetLocale(ctx context.Context, user *domain.User, locale string) (*domain.User, error)
}

// ingestService defines the manual sync trigger used by the admin command.
type ingestService interface {
	Synchronize(ctx context.Context) (ingest.Result, error)
}

// topicSource defines the source taxonomy lookup behind /topics.
type topicSource interface {
	UniqueTypeNames(ctx context.Context, limit int) ([]string, error)
}

// Bot handles Telegram updates.
type Bot struct {
	log         *slog.Logger
	api         *tgbotapi.BotAPI
	subs        subscriptionService
	ingest      ingestService
	topics      topicSource
	adminChatID int64
	pollTimeout int

	// pendingKeyword tracks chats that were asked for a keyword and whose
	// next plain-text message is the answer. In-memory is enough: polling
	// runs on the single leader replica.
	mu             sync.Mutex
	pendingKeyword map[int64]struct{}
}

// New creates the bot transport.
func New(
	logger *slog.Logger,
	api *tgbotapi.BotAPI,
	subs subscriptionService,
	ingestSvc ingestService,
	topics topicSource,
	cfg config.TelegramConfig,
) *Bot {
	return &Bot{
		log:            logger.With("component", "telegrambot"),
		api:            api,
		subs:           subs,
		ingest:         ingestSvc,
		topics:         topics,
		adminChatID:    cfg.AdminChatID,
		pollTimeout:    cfg.PollTimeoutSec,
		pendingKeyword: make(map[int64]struct{}),
	}
}

// Run consumes updates over long polling until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(cfg)

	b.log.InfoContext(ctx, "bot polling started", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.ErrorContext(ctx, "panic in update handler", slog.Any("panic", r))
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

// -------------------- Messages --------------------

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	user, err := b.subs.RegisterUser(ctx, chatID)
	if err != nil {
		b.log.ErrorContext(ctx, "register user failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, user, msg)
		return
	}

	b.handleText(ctx, user, msg)
}

func (b *Bot) handleCommand(ctx context.Context, user *domain.User, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.cmdStart(ctx, user, chatID, msg.CommandArguments())
	case "help":
		b.reply(chatID, T(user.Locale, "help_lines", nil))
	case "subscribe":
		b.replyWithKeyboard(chatID, T(user.Locale, "choose_sub_type", nil), subscribeKeyboard(user.Locale))
	case "topics":
		b.cmdTopics(ctx, user, chatID)
	case "manage":
		b.cmdManage(ctx, user, chatID)
	case "list":
		b.cmdList(ctx, user, chatID)
	case "lang":
		b.replyWithKeyboard(chatID, T(user.Locale, "lang_choose", nil), langKeyboard())
	case "sync":
		b.cmdSync(ctx, user, chatID)
	}
}

func (b *Bot) cmdStart(ctx context.Context, user *domain.User, chatID int64, payload string) {
	if payload != "" {
		// Deep link payloads: cat_<CATEGORY> or kw_<url-encoded term>.
		if cat, ok := strings.CutPrefix(payload, "cat_"); ok {
			b.addAndReply(ctx, user, chatID, domain.SubscriptionCategory, strings.ToUpper(cat),
				"sub_added_cat", "sub_exists_cat", Vars{"cat": strings.ToUpper(cat)})
			return
		}
		if term, ok := strings.CutPrefix(payload, "kw_"); ok {
			if decoded, err := url.QueryUnescape(term); err == nil {
				term = decoded
			}
			b.addAndReply(ctx, user, chatID, domain.SubscriptionKeyword, term,
				"sub_added_keyword", "sub_exists_keyword", Vars{"term": term})
			return
		}
	}

	b.reply(chatID, T(user.Locale, "welcome", nil))
	b.replyWithKeyboard(chatID, T(user.Locale, "choose_sub_type", nil), subscribeKeyboard(user.Locale))
}

func (b *Bot) cmdTopics(ctx context.Context, user *domain.User, chatID int64) {
	types, err := b.topics.UniqueTypeNames(ctx, 200)
	if err != nil || len(types) == 0 {
		b.reply(chatID, T(user.Locale, "topics_none", nil))
		return
	}
	b.replyWithKeyboard(chatID, T(user.Locale, "topics_choose", nil), topicsKeyboard(types))
}

func (b *Bot) cmdManage(ctx context.Context, user *domain.User, chatID int64) {
	subs, err := b.subs.List(ctx, user)
	if err != nil {
		b.log.ErrorContext(ctx, "list subscriptions failed", slog.String("error", err.Error()))
		return
	}
	if len(subs) == 0 {
		b.reply(chatID, T(user.Locale, "subs_none", nil))
		return
	}
	b.replyWithKeyboard(chatID, T(user.Locale, "subs_title", nil), manageKeyboard(subs))
}

func (b *Bot) cmdList(ctx context.Context, user *domain.User, chatID int64) {
	subs, err := b.subs.List(ctx, user)
	if err != nil {
		b.log.ErrorContext(ctx, "list subscriptions failed", slog.String("error", err.Error()))
		return
	}
	if len(subs) == 0 {
		b.reply(chatID, T(user.Locale, "subs_none", nil))
		return
	}

	lines := make([]string, 0, len(subs))
	for _, sub := range subs {
		line := "• " + sub.Type.String()
		if q := sub.QueryLabel(); q != "" {
			line += ": " + q
		}
		lines = append(lines, line)
	}
	b.reply(chatID, strings.Join(lines, "\n"))
}

func (b *Bot) cmdSync(ctx context.Context, user *domain.User, chatID int64) {
	if chatID != b.adminChatID {
		b.reply(chatID, T(user.Locale, "sync_admin_only", nil))
		return
	}

	b.reply(chatID, T(user.Locale, "sync_starting", nil))
	res, err := b.ingest.Synchronize(ctx)
	if err != nil {
		b.log.ErrorContext(ctx, "manual sync failed", slog.String("error", err.Error()))
		b.reply(chatID, err.Error())
		return
	}
	b.reply(chatID, T(user.Locale, "sync_done", Vars{
		"created": strconv.Itoa(res.Created),
		"updated": strconv.Itoa(res.Updated),
		"maxId":   strconv.FormatInt(res.MaxID, 10),
	}))
}

func (b *Bot) handleText(ctx context.Context, user *domain.User, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	b.mu.Lock()
	_, waiting := b.pendingKeyword[chatID]
	delete(b.pendingKeyword, chatID)
	b.mu.Unlock()

	if !waiting {
		return
	}
	b.addAndReply(ctx, user, chatID, domain.SubscriptionKeyword, text,
		"sub_added_keyword", "sub_exists_keyword", Vars{"term": text})
}

// -------------------- Callbacks --------------------

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	user, err := b.subs.RegisterUser(ctx, chatID)
	if err != nil {
		b.log.ErrorContext(ctx, "register user failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
		return
	}

	data := cb.Data
	switch {
	case data == cbSubAll:
		res, err := b.subs.Add(ctx, user, domain.SubscriptionAll, nil)
		b.finishSubCallback(ctx, user, cb, res, err, "sub_added_all", "sub_exists_all", nil)

	case strings.HasPrefix(data, cbSubCat):
		cat := strings.ToUpper(strings.TrimPrefix(data, cbSubCat))
		res, err := b.subs.Add(ctx, user, domain.SubscriptionCategory, &cat)
		b.finishSubCallback(ctx, user, cb, res, err, "sub_added_cat", "sub_exists_cat", Vars{"cat": cat})

	case data == cbSubKeyword:
		b.mu.Lock()
		b.pendingKeyword[chatID] = struct{}{}
		b.mu.Unlock()
		b.answerCallback(cb.ID, "")
		b.editMessage(chatID, cb.Message.MessageID, T(user.Locale, "prompt_keyword", nil))

	case strings.HasPrefix(data, cbSubType):
		name := strings.TrimPrefix(data, cbSubType)
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		res, err := b.subs.Add(ctx, user, domain.SubscriptionKeyword, &name)
		b.finishSubCallback(ctx, user, cb, res, err, "sub_added_keyword", "sub_exists_keyword", Vars{"term": name})

	case strings.HasPrefix(data, cbUnsub):
		b.callbackUnsub(ctx, user, cb, strings.TrimPrefix(data, cbUnsub))

	case strings.HasPrefix(data, cbLang):
		b.callbackLang(ctx, user, cb, strings.TrimPrefix(data, cbLang))
	}
}

func (b *Bot) addAndReply(
	ctx context.Context,
	user *domain.User,
	chatID int64,
	typ domain.SubscriptionType,
	value string,
	addedKey, existsKey string,
	vars Vars,
) {
	res, err := b.subs.Add(ctx, user, typ, &value)
	if err != nil {
		b.log.WarnContext(ctx, "subscription add failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
		b.reply(chatID, T(user.Locale, "sub_invalid", nil))
		return
	}

	key := existsKey
	if res.Created {
		key = addedKey
	}
	b.reply(chatID, T(user.Locale, key, vars))
}

func (b *Bot) finishSubCallback(
	ctx context.Context,
	user *domain.User,
	cb *tgbotapi.CallbackQuery,
	res subscription.AddResult,
	err error,
	addedKey, existsKey string,
	vars Vars,
) {
	chatID := cb.Message.Chat.ID
	b.answerCallback(cb.ID, "")

	if err != nil {
		b.log.WarnContext(ctx, "subscription add failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
		b.editMessage(chatID, cb.Message.MessageID, T(user.Locale, "sub_invalid", nil))
		return
	}

	key := existsKey
	if res.Created {
		key = addedKey
	}
	b.editMessage(chatID, cb.Message.MessageID, T(user.Locale, key, vars))
}

func (b *Bot) callbackUnsub(ctx context.Context, user *domain.User, cb *tgbotapi.CallbackQuery, rawID string) {
	chatID := cb.Message.Chat.ID

	id, err := uuid.Parse(rawID)
	if err != nil {
		b.answerCallback(cb.ID, "")
		return
	}
	if err := b.subs.Remove(ctx, user, id); err != nil {
		b.log.WarnContext(ctx, "unsubscribe failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
	}

	b.answerCallback(cb.ID, T(user.Locale, "unsub_deleted_cb", nil))
	b.editMessage(chatID, cb.Message.MessageID, T(user.Locale, "unsub_deleted_text", nil))
}

func (b *Bot) callbackLang(ctx context.Context, user *domain.User, cb *tgbotapi.CallbackQuery, locale string) {
	chatID := cb.Message.Chat.ID

	updated, err := b.subs.SetLocale(ctx, user, locale)
	if err != nil {
		b.answerCallback(cb.ID, "")
		return
	}
	b.setChatCommands(chatID, updated.Locale)

	b.answerCallback(cb.ID, "")
	key := "lang_set_az"
	if updated.Locale == domain.LocaleEN {
		key = "lang_set_en"
	}
	b.editMessage(chatID, cb.Message.MessageID, T(updated.Locale, key, nil))
}

// -------------------- Telegram plumbing --------------------

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn("reply failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("reply failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.log.Warn("edit failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Warn("answer callback failed", slog.String("error", err.Error()))
	}
}

func (b *Bot) setChatCommands(chatID int64, locale string) {
	scope := tgbotapi.NewBotCommandScopeChat(chatID)
	cfg := tgbotapi.NewSetMyCommandsWithScope(scope, botCommands(locale)...)
	if _, err := b.api.Request(cfg); err != nil {
		b.log.Warn("set commands failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", fmt.Sprintf("%v", err)))
	}
}
