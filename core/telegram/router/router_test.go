package router

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/blikbot/core/telegram"
	"github.com/m3rciful/blikbot/core/telegram/commands"
)

func newContext(t *testing.T, userID int64, text string) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return b.NewContext(tele.Update{ID: 3, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
		Text:   text,
	}})
}

type fakeDialog struct {
	active  bool
	handled int
}

func (d *fakeDialog) InProgress(tele.Context) bool { return d.active }
func (d *fakeDialog) Handle(tele.Context) error    { d.handled++; return nil }

func routeFor(t *testing.T, routes []tg.Route, endpoint any) tg.Route {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r
		}
	}
	t.Fatalf("no route for %v", endpoint)
	return tg.Route{}
}

func TestCommandRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	var calls []string
	record := func(name string) tele.HandlerFunc {
		return func(tele.Context) error { calls = append(calls, name); return nil }
	}
	if err := reg.RegisterCommand("/order", commands.Command{Handler: record("order"), Description: "Place an order", Aliases: []string{"buy"}}); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCommand("/stats", commands.Command{Handler: record("stats"), Description: "Stats", AdminOnly: true}); err != nil {
		t.Fatal(err)
	}

	rejected := 0
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       1,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	if len(routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(routes))
	}

	_ = routeFor(t, routes, "/buy").Handler(newContext(t, 2, "/buy"))
	_ = routeFor(t, routes, "/stats").Handler(newContext(t, 2, "/stats"))
	_ = routeFor(t, routes, "/stats").Handler(newContext(t, 1, "/stats"))

	if fmt.Sprint(calls) != "[order stats]" || rejected != 1 {
		t.Fatalf("calls=%v rejected=%d", calls, rejected)
	}
}

func TestTextRoutesPrefersActiveDialog(t *testing.T) {
	reg := tg.NewRegistry()
	fallbacks := 0
	reg.SetTextFallback(func(tele.Context) error { fallbacks++; return nil })

	dialog := &fakeDialog{active: true}
	h := TextRoutes(dialog, reg, TextOptions{})[0].Handler

	_ = h(newContext(t, 5, "123456"))
	if dialog.handled != 1 || fallbacks != 0 {
		t.Fatalf("dialog=%d fallback=%d", dialog.handled, fallbacks)
	}

	dialog.active = false
	_ = h(newContext(t, 5, "hello"))
	if dialog.handled != 1 || fallbacks != 1 {
		t.Fatalf("dialog=%d fallback=%d", dialog.handled, fallbacks)
	}
}

func TestTextRoutesMatchesCommandText(t *testing.T) {
	reg := tg.NewRegistry()
	hits, adminHits := 0, 0
	err := reg.RegisterCommand("/cancel", commands.Command{
		Handler:     func(tele.Context) error { hits++; return nil },
		Description: "Cancel",
	})
	if err != nil {
		t.Fatal(err)
	}
	err = reg.RegisterCommand("/stats", commands.Command{
		Handler:     func(tele.Context) error { adminHits++; return nil },
		Description: "Stats",
		AdminOnly:   true,
	})
	if err != nil {
		t.Fatal(err)
	}

	unknown := 0
	h := TextRoutes(nil, reg, TextOptions{UnknownText: func(tele.Context) error { unknown++; return nil }})[0].Handler
	_ = h(newContext(t, 5, "cancel"))
	_ = h(newContext(t, 5, "something else"))
	_ = h(newContext(t, 5, "stats"))
	if hits != 1 || adminHits != 0 || unknown != 2 {
		t.Fatalf("hits=%d admin=%d unknown=%d", hits, adminHits, unknown)
	}
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "not found" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	if got := deriveErrorCode(fmt.Errorf("wrap: %w", codedErr{})); got != "NOT_FOUND" {
		t.Fatalf("coded = %q", got)
	}
	if got := deriveErrorCode(&plainErr{}); got != "PLAINERR" {
		t.Fatalf("typed = %q", got)
	}
	if got := deriveErrorCode(errors.New("x")); got != "ERRORSTRING" {
		t.Fatalf("errors.New = %q", got)
	}
	if got := deriveErrorCode(nil); got != "" {
		t.Fatalf("nil = %q", got)
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	if got := normalizeHandlerName(" /Confirm_Blik "); got != "confirm_blik" {
		t.Fatalf("got %q", got)
	}
	if got := normalizeHandlerName(""); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}
