package bot

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/blikbot/core/config"
	tg "github.com/m3rciful/blikbot/core/telegram"
	"github.com/m3rciful/blikbot/core/telegram/sender"
	"github.com/m3rciful/blikbot/internal/checkout"
	"github.com/m3rciful/blikbot/internal/domain/model"
	"github.com/m3rciful/blikbot/internal/secret"
	"github.com/m3rciful/blikbot/internal/storage"
	"github.com/m3rciful/blikbot/internal/storage/memory"
)

type sent struct {
	chat int64
	text string
	opts []interface{}
}

// fakeSender stands in for *tele.Bot.
type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var chat int64
	if id, ok := to.(tele.ChatID); ok {
		chat = int64(id)
	}
	f.msgs = append(f.msgs, sent{chat: chat, text: what.(string), opts: opts})
	return &tele.Message{}, nil
}

func (f *fakeSender) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		t.Fatal("nothing sent")
	}
	return f.msgs[len(f.msgs)-1]
}

// replyContext records replies made through the update context.
type replyContext struct {
	tele.Context
	replies *[]sent
}

func (r replyContext) Send(what interface{}, opts ...interface{}) error {
	*r.replies = append(*r.replies, sent{chat: r.Chat().ID, text: what.(string), opts: opts})
	return nil
}

type harness struct {
	bot     *Bot
	store   *memory.Store
	out     *fakeSender
	tb      *tele.Bot
	replies []sent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tb, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	codec, err := secret.NewCodec(bytes.Repeat([]byte{3}, secret.KeySize))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	store := memory.New(storage.Options{})
	m := NewMessenger()
	fs := &fakeSender{}
	m.Bind(fs, nil)
	ctrl := checkout.NewController(store, codec, m, checkout.DefaultSettings())
	return &harness{bot: New(ctrl, m), store: store, out: fs, tb: tb}
}

func (h *harness) send(t *testing.T, userID int64, text string) {
	t.Helper()
	c := h.tb.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: userID, FirstName: "Jan"},
		Chat:   &tele.Chat{ID: userID},
		Text:   text,
	}})
	if err := h.bot.Handle(replyContext{Context: c, replies: &h.replies}); err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
}

func (h *harness) lastReply(t *testing.T) sent {
	t.Helper()
	if len(h.replies) == 0 {
		t.Fatal("no replies")
	}
	return h.replies[len(h.replies)-1]
}

func TestEventFrom(t *testing.T) {
	tb, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	tests := []struct {
		text, cmd, args string
	}{
		{"/confirm_blik abc123", "confirm_blik", "abc123"},
		{"/Order@blik_bot", "order", ""},
		{"  /confirm_blik   x y ", "confirm_blik", "x y"},
		{"123456", "", ""},
	}
	for _, tt := range tests {
		c := tb.NewContext(tele.Update{Message: &tele.Message{
			Sender: &tele.User{ID: 5, Username: "ola"},
			Chat:   &tele.Chat{ID: 9},
			Text:   tt.text,
		}})
		ev := EventFrom(c)
		if ev.Command != tt.cmd || ev.Args != tt.args {
			t.Fatalf("%q: command=%q args=%q", tt.text, ev.Command, ev.Args)
		}
		if ev.SenderID != 5 || ev.ChatID != 9 || ev.DisplayName != "ola" || ev.Text != tt.text {
			t.Fatalf("%q: event = %+v", tt.text, ev)
		}
	}
}

func TestReplyMarkup(t *testing.T) {
	if replyMarkup(nil) != nil {
		t.Fatal("nil keyboard produced markup")
	}
	if m := replyMarkup(&checkout.Keyboard{Remove: true}); !m.RemoveKeyboard {
		t.Fatal("remove not honoured")
	}
	m := replyMarkup(&checkout.Keyboard{Rows: [][]string{{"BLIK"}, {"Crypto"}}, OneTime: true})
	if !m.OneTimeKeyboard || len(m.ReplyKeyboard) != 2 {
		t.Fatalf("markup = %+v", m)
	}
}

func TestMessengerUnbound(t *testing.T) {
	m := NewMessenger()
	if err := m.Reply(context.Background(), 1, "x", nil); err == nil {
		t.Fatal("unbound reply succeeded")
	}
	if err := m.Notify(context.Background(), 1, "x"); err == nil {
		t.Fatal("unbound notify succeeded")
	}
}

func TestMessengerNotifyThroughDispatcher(t *testing.T) {
	fs := &fakeSender{}
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	m := NewMessenger()
	m.Bind(fs, d)
	if err := m.Notify(context.Background(), 42, "code"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	d.Close()
	if got := fs.last(t); got.chat != 42 || got.text != "code" {
		t.Fatalf("sent %+v", got)
	}
}

func TestOrderFlowOverTelegram(t *testing.T) {
	h := newHarness(t)
	const customer, operator = 100, 200

	h.send(t, operator, "/available")
	h.send(t, customer, "/order")
	if !h.bot.InProgress(h.tb.NewContext(tele.Update{Message: &tele.Message{Chat: &tele.Chat{ID: customer}}})) {
		t.Fatal("dialog not in progress after /order")
	}

	h.send(t, customer, "Jan\nWarsaw\njan@x.com\n123\nWidget/2/300")
	reply := h.lastReply(t)
	if len(reply.opts) != 1 {
		t.Fatalf("payment keyboard missing: %+v", reply)
	}
	if kb, ok := reply.opts[0].(*tele.ReplyMarkup); !ok || !kb.OneTimeKeyboard {
		t.Fatalf("opts = %#v", reply.opts)
	}

	h.send(t, customer, "blik")
	h.send(t, customer, "123456")

	note := h.out.last(t)
	if note.chat != operator || !strings.Contains(note.text, "123456") {
		t.Fatalf("operator notification = %+v", note)
	}
	orderID := strings.Fields(note.text[strings.Index(note.text, "/confirm_blik"):])[1]

	h.send(t, operator, "/confirm_blik "+orderID)
	order, err := h.store.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.PaymentStatus != model.PaymentStatusPaid {
		t.Fatalf("status = %s", order.PaymentStatus)
	}
	if got := h.out.last(t); got.chat != customer {
		t.Fatalf("customer not notified: %+v", got)
	}
}

func TestRunOptions(t *testing.T) {
	h := newHarness(t)
	cfg := &coreconfig.Config{}
	cfg.RateLimit.IntervalMS = 100

	opts, err := h.bot.RunOptions(cfg, sender.Options{})
	if err != nil {
		t.Fatalf("RunOptions: %v", err)
	}
	visible := opts.Registry.ListCommands(true)
	if len(visible) != 3 {
		t.Fatalf("visible commands = %v", visible)
	}
	if opts.Registry.TextFallback() == nil {
		t.Fatal("text fallback not set")
	}
	// 6 order commands, /status and the text route
	if len(opts.Routes) != 8 {
		t.Fatalf("routes = %d", len(opts.Routes))
	}
	names := make([]string, 0, len(opts.Middlewares))
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	if strings.Join(names, ",") != "recover,rate_limit,logger,metrics" {
		t.Fatalf("middlewares = %v", names)
	}

	rebound := NewMessenger()
	b := New(nil, rebound)
	opts, _ = b.RunOptions(cfg, sender.Options{})
	if err := opts.OnStart(context.Background(), tg.Runtime{}); err != nil {
		t.Fatalf("OnStart: %v", err)
	}
	if s, _ := rebound.bound(); s == nil {
		t.Fatal("OnStart did not bind the messenger")
	}
}

func TestStatusIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	cfg := &coreconfig.Config{}
	cfg.Telegram.AdminID = 7

	opts, err := h.bot.RunOptions(cfg, sender.Options{})
	if err != nil {
		t.Fatalf("RunOptions: %v", err)
	}
	var status tg.Route
	for _, r := range opts.Routes {
		if r.Endpoint == "/status" {
			status = r
		}
	}
	if status.Handler == nil {
		t.Fatal("no /status route")
	}

	call := func(userID int64) sent {
		c := h.tb.NewContext(tele.Update{ID: int(userID), Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
			Text:   "/status",
		}})
		if err := status.Handler(replyContext{Context: c, replies: &h.replies}); err != nil {
			t.Fatalf("/status from %d: %v", userID, err)
		}
		return h.lastReply(t)
	}

	if got := call(8); got.text != msgAdminOnly {
		t.Fatalf("non-admin reply = %q", got.text)
	}
	got := call(7)
	if !strings.Contains(got.text, "Version:") || !strings.Contains(got.text, "queue: off") {
		t.Fatalf("admin reply = %q", got.text)
	}
	for _, cmd := range opts.Registry.ListCommands(true) {
		if cmd.Text == "status" {
			t.Fatal("/status listed in the menu")
		}
	}
}
