// Package telegram connects the resolver to the Telegram Bot API through
// long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finbot/internal/bot"
	applog "finbot/internal/log"
	"finbot/internal/presentation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	failureText     = "⚠️ Что-то пошло не так, попробуй ещё раз."
	slowDownText    = "⏳ Слишком много сообщений, подожди немного."
	pollTimeoutSecs = 60

	// DefaultNoticeWindow bounds how often a throttled user is told to slow down.
	DefaultNoticeWindow = time.Minute
)

// Sender delivers one outbound message. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Updater is the long polling side of *tgbotapi.BotAPI.
type Updater interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler resolves the text of one message into one reply.
type Handler interface {
	Handle(ctx context.Context, uid int64, text string) (bot.Reply, error)
}

// Limiter decides whether a user may be served right now.
type Limiter interface {
	Allow(uid int64) bool
}

type Bot struct {
	sender    Sender
	updates   Updater
	handler   Handler
	presenter presentation.Presenter
	limiter   Limiter
	logger    *applog.Logger
	events    *applog.StructuredLogger

	noticeWindow time.Duration
	now          func() time.Time
	mu           sync.Mutex
	notified     map[int64]time.Time
}

type Option func(*Bot)

func WithLimiter(l Limiter) Option {
	return func(b *Bot) { b.limiter = l }
}

func WithLogger(l *applog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithNoticeWindow sets how long a throttled user goes without another
// slow down reply.
func WithNoticeWindow(d time.Duration) Option {
	return func(b *Bot) { b.noticeWindow = d }
}

// NewAPI authenticates against the Bot API with token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return api, nil
}

func New(sender Sender, updates Updater, handler Handler, presenter presentation.Presenter, opts ...Option) *Bot {
	b := &Bot{
		sender:    sender,
		updates:   updates,
		handler:   handler,
		presenter: presenter,
		logger:    applog.Discard(),

		noticeWindow: DefaultNoticeWindow,
		now:          time.Now,
		notified:     make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent(applog.ComponentTelegram)
	b.events = applog.NewStructuredLogger(b.logger)
	return b
}

// Run polls for updates and handles them one at a time until ctx is done or
// the update channel closes.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSecs
	updates := b.updates.GetUpdatesChan(cfg)
	defer b.updates.StopReceivingUpdates()

	b.logger.InfoContext(ctx, "Polling for updates", applog.FieldOperation, applog.OpStartup)
	for {
		select {
		case <-ctx.Done():
			b.logger.InfoContext(ctx, "Stopped polling", applog.FieldOperation, applog.OpShutdown)
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.HandleUpdate(ctx, upd); err != nil && !errors.Is(err, context.Canceled) {
				b.events.LogError(ctx, "Update failed", err, applog.ComponentTelegram, applog.OpSend,
					applog.NewFields().WithUpdate(upd.UpdateID, chatID(upd), userID(upd)))
			}
		}
	}
}

// HandleUpdate processes a single update. Updates without message text are
// skipped. Store failures are answered with a generic failure text and
// returned. The handler sees a ctx carrying a logger tagged with the update.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	msg := upd.Message
	if msg == nil || msg.Text == "" || msg.From == nil || msg.Chat == nil {
		return nil
	}
	uid, chat := msg.From.ID, msg.Chat.ID
	start := time.Now()
	logger := b.logger.With(applog.FieldUpdateID, upd.UpdateID, applog.FieldChatID, chat).WithUser(uid)
	ctx = applog.WithContext(ctx, logger)

	if b.limiter != nil && !b.limiter.Allow(uid) {
		if !b.shouldNotify(uid) {
			logger.DebugContext(ctx, "Rate limited message dropped")
			return nil
		}
		logger.WarnContext(ctx, "Rate limit exceeded")
		return b.sendText(chat, slowDownText, nil)
	}

	reply, err := b.handler.Handle(ctx, uid, msg.Text)
	if err != nil {
		logger.ErrorContext(ctx, "Handler failed", applog.NewFields().
			WithError(err).WithErrorType(applog.ErrorTypeDatabase).ToSlice()...)
		b.events.LogUpdateEnd(ctx, upd.UpdateID, chat, uid, bot.Error.String(), time.Since(start).Milliseconds(), true)
		if sendErr := b.sendText(chat, failureText, nil); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	}

	err = b.deliver(ctx, chat, reply)
	if err != nil {
		logger.WarnContext(ctx, "Reply not delivered", applog.NewFields().
			WithOperation(applog.OpSend).WithError(err).WithErrorType(applog.ErrorTypeNetwork).ToSlice()...)
	}
	b.events.LogUpdateEnd(ctx, upd.UpdateID, chat, uid, reply.Kind.String(), time.Since(start).Milliseconds(), err != nil)
	return err
}

// shouldNotify reports whether uid gets a slow down reply now, and records
// the notice if so. At most one notice goes out per window.
func (b *Bot) shouldNotify(uid int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if last, ok := b.notified[uid]; ok && now.Sub(last) < b.noticeWindow {
		return false
	}
	b.notified[uid] = now
	for id, at := range b.notified {
		if now.Sub(at) >= b.noticeWindow {
			delete(b.notified, id)
		}
	}
	return true
}

func (b *Bot) deliver(ctx context.Context, chat int64, reply bot.Reply) error {
	if reply.Stats == nil {
		return b.sendText(chat, reply.Text, reply.Menu)
	}

	rendered, err := b.presenter.RenderStats(ctx, *reply.Stats)
	if err != nil {
		if sendErr := b.sendText(chat, failureText, reply.Menu); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return fmt.Errorf("render stats: %w", err)
	}
	if !rendered.HasImage() {
		return b.sendText(chat, rendered.Text, reply.Menu)
	}

	photo := tgbotapi.NewPhoto(chat, tgbotapi.FileBytes{Name: rendered.ImageName, Bytes: rendered.Image})
	photo.Caption = rendered.Text
	photo.ParseMode = tgbotapi.ModeMarkdown
	if reply.Menu != nil {
		photo.ReplyMarkup = Keyboard(reply.Menu)
	}
	if _, err := b.sender.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

func (b *Bot) sendText(chat int64, text string, menu *bot.Menu) error {
	m := tgbotapi.NewMessage(chat, text)
	m.ParseMode = tgbotapi.ModeMarkdown
	if menu != nil {
		m.ReplyMarkup = Keyboard(menu)
	}
	if _, err := b.sender.Send(m); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Keyboard converts a menu into a resized reply keyboard.
func Keyboard(menu *bot.Menu) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(menu.Rows))
	for _, labels := range menu.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(labels))
		for _, label := range labels {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = menu.OneTime
	kb.InputFieldPlaceholder = menu.Placeholder
	return kb
}

func chatID(upd tgbotapi.Update) int64 {
	if upd.Message != nil && upd.Message.Chat != nil {
		return upd.Message.Chat.ID
	}
	return 0
}

func userID(upd tgbotapi.Update) int64 {
	if upd.Message != nil && upd.Message.From != nil {
		return upd.Message.From.ID
	}
	return 0
}
