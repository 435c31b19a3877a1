package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/blikbot/core/logger"
	tghelpers "github.com/m3rciful/blikbot/core/telegram/helpers"
	"github.com/m3rciful/blikbot/core/telegram/keyboard"
	"github.com/m3rciful/blikbot/core/telegram/sender"
	"github.com/m3rciful/blikbot/internal/checkout"
)

var errNotBound = errors.New("bot: messenger is not bound to a bot")

type replyKey struct{}

// withReply marks c as the update being answered so replies to its chat go
// through the update context.
func withReply(ctx context.Context, c tele.Context) context.Context {
	return context.WithValue(ctx, replyKey{}, c)
}

func replyFrom(ctx context.Context, chatID int64) (tele.Context, bool) {
	c, ok := ctx.Value(replyKey{}).(tele.Context)
	if !ok || c == nil || c.Chat() == nil || c.Chat().ID != chatID {
		return nil, false
	}
	return c, true
}

// Messenger delivers controller output over Telegram. Replies are sent
// synchronously; notifications go through the outbound dispatcher.
type Messenger struct {
	mu         sync.RWMutex
	sender     tghelpers.Sender
	dispatcher *sender.Dispatcher
}

// NewMessenger returns an unbound messenger; call Bind before use.
func NewMessenger() *Messenger {
	return &Messenger{}
}

// Bind attaches the bot and dispatcher created at startup.
func (m *Messenger) Bind(s tghelpers.Sender, d *sender.Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sender = s
	m.dispatcher = d
}

func (m *Messenger) bound() (tghelpers.Sender, *sender.Dispatcher) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sender, m.dispatcher
}

// Reply implements checkout.Messenger.
func (m *Messenger) Reply(ctx context.Context, chatID int64, text string, kb *checkout.Keyboard) error {
	var opts []interface{}
	if markup := replyMarkup(kb); markup != nil {
		opts = append(opts, markup)
	}
	if c, ok := replyFrom(ctx, chatID); ok {
		return c.Send(text, opts...)
	}
	s, _ := m.bound()
	if s == nil {
		return errNotBound
	}
	return tghelpers.SendText(s, chatID, text, opts...)
}

// Notify implements checkout.Messenger. The message is queued and delivered
// with retries; an error means it could not even be queued or sent inline.
func (m *Messenger) Notify(ctx context.Context, chatID int64, text string) error {
	s, d := m.bound()
	if s == nil {
		return errNotBound
	}
	job := sender.Job{
		Action:   "notify",
		Endpoint: "sendMessage",
		Run: func(context.Context) error {
			return tghelpers.SendText(s, chatID, text)
		},
	}
	if err := tghelpers.Enqueue(ctx, d, job); err != nil {
		return err
	}
	logger.Debug(ctx, logger.ComponentTelegram, "notify.queued", slog.Int64("to", chatID))
	return nil
}

func replyMarkup(kb *checkout.Keyboard) *tele.ReplyMarkup {
	switch {
	case kb == nil:
		return nil
	case kb.Remove:
		return keyboard.RemoveKeyboard()
	case kb.OneTime:
		return keyboard.OneTimeButtons(kb.Rows...)
	default:
		return keyboard.ReplyButtons(kb.Rows...)
	}
}
