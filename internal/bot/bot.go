// Package bot connects the order controller to Telegram.
package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/blikbot/core/config"
	tg "github.com/m3rciful/blikbot/core/telegram"
	"github.com/m3rciful/blikbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/blikbot/core/telegram/helpers"
	"github.com/m3rciful/blikbot/core/telegram/router"
	"github.com/m3rciful/blikbot/core/telegram/sender"
	"github.com/m3rciful/blikbot/internal/checkout"
)

const msgSlowDown = "Too many messages, please wait a moment."

// Bot routes Telegram updates into the order controller.
type Bot struct {
	ctrl *checkout.Controller
	out  *Messenger
}

// New returns a Bot for ctrl; out must be the messenger ctrl writes to.
func New(ctrl *checkout.Controller, out *Messenger) *Bot {
	return &Bot{ctrl: ctrl, out: out}
}

// Handle passes the update to the controller.
func (b *Bot) Handle(c tele.Context) error {
	ctx := withReply(tghelpers.BuildContext(c), c)
	return b.ctrl.Handle(ctx, EventFrom(c))
}

// InProgress reports whether the update's conversation is inside the order dialogue.
func (b *Bot) InProgress(c tele.Context) bool {
	return b.ctrl.InProgress(conversationID(c))
}

// Register adds the bot commands, the admin status command and the text
// fallback to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	defs := []struct {
		name   string
		desc   string
		hidden bool
	}{
		{checkout.CommandStart, "How to order", false},
		{checkout.CommandOrder, "Place an order", false},
		{checkout.CommandCancel, "Cancel the current order dialogue", false},
		{checkout.CommandAvailable, "Operator: receive BLIK codes", true},
		{checkout.CommandUnavailable, "Operator: stop receiving BLIK codes", true},
		{checkout.CommandConfirmBlik, "Operator: confirm a BLIK payment", true},
	}
	for _, d := range defs {
		err := reg.RegisterCommand("/"+d.name, commands.Command{
			Handler:     b.Handle,
			Description: d.desc,
			Hidden:      d.hidden,
		})
		if err != nil {
			return err
		}
	}
	err := reg.RegisterCommand("/"+commandStatus, commands.Command{
		Handler:     b.status,
		Description: "Admin: build and queue status",
		AdminOnly:   true,
	})
	if err != nil {
		return err
	}
	reg.SetTextFallback(b.Handle)
	return nil
}

// RunOptions assembles the Telegram runtime for the bot.
func (b *Bot) RunOptions(cfg *coreconfig.Config, dispatcher sender.Options) (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("bot: register commands: %w", err)
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return c.Send(msgAdminOnly)
		},
	})
	routes = append(routes, router.TextRoutes(b, reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:            cfg,
		Registry:          reg,
		DispatcherOptions: dispatcher,
		Middlewares: tg.DefaultMiddlewares(cfg, func(c tele.Context) error {
			return c.Send(msgSlowDown)
		}),
		Routes: routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			b.out.Bind(rt.Bot, rt.Dispatcher)
			return nil
		},
	}, nil
}
