// Package app assembles the bot from its configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/blikbot/core/bootstrap"
	"github.com/m3rciful/blikbot/core/logger"
	coretelegram "github.com/m3rciful/blikbot/core/telegram"
	"github.com/m3rciful/blikbot/core/telegram/sender"
	"github.com/m3rciful/blikbot/internal/bot"
	"github.com/m3rciful/blikbot/internal/checkout"
	"github.com/m3rciful/blikbot/internal/config"
	"github.com/m3rciful/blikbot/internal/domain/model"
	"github.com/m3rciful/blikbot/internal/domain/repository"
	"github.com/m3rciful/blikbot/internal/secret"
	"github.com/m3rciful/blikbot/internal/storage"
	"github.com/m3rciful/blikbot/internal/storage/memory"
	"github.com/m3rciful/blikbot/internal/storage/postgres"
	"github.com/m3rciful/blikbot/migrations"
)

// App owns the order store and the Telegram bot built on top of it.
type App struct {
	cfg   *config.Config
	store repository.Store
	ctrl  *checkout.Controller
	bot   *bot.Bot
}

// Build initializes logging and storage and wires the controller. boot may
// carry replacements for the logger, connect and migrate steps; its
// Logging, Database and Migrations fields are filled from cfg.
func Build(ctx context.Context, cfg *config.Config, boot bootstrap.Options) (*App, error) {
	boot.Logging = cfg.Logging
	boot.Database = nil
	boot.Migrations = nil
	if cfg.UsePostgres() {
		boot.Database = &cfg.Database
		boot.Migrations = migrations.FS
	}
	res, err := bootstrap.Run(ctx, boot)
	if err != nil {
		return nil, err
	}

	codec, err := secret.NewCodecFromBase64(cfg.Crypto.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("app: encryption key: %w", err)
	}

	storeOpts := storage.Options{ReservationWindow: cfg.ReservationWindow()}
	var store repository.Store
	if res.DB != nil {
		store = postgres.New(res.DB, storeOpts)
	} else {
		store = memory.New(storeOpts)
	}

	if err := bootstrap.Seed(ctx, store, operatorSeeder(cfg.Operator.ChatID)); err != nil {
		_ = store.Close()
		return nil, err
	}

	out := bot.NewMessenger()
	ctrl := checkout.NewController(store, codec, out, cfg.CheckoutSettings())
	logger.Info(ctx, logger.ComponentApp, "build",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Storage.Driver),
		slog.Int64("operator_id", cfg.Operator.ChatID),
	)
	return &App{cfg: cfg, store: store, ctrl: ctrl, bot: bot.New(ctrl, out)}, nil
}

// operatorSeeder registers the configured operator as available.
func operatorSeeder(chatID int64) bootstrap.Seeder[repository.Store] {
	return bootstrap.SeederFunc[repository.Store](func(ctx context.Context, s repository.Store) error {
		if chatID == 0 {
			return nil
		}
		if err := s.SetOperatorAvailability(ctx, chatID, true, model.RoleManager); err != nil {
			return fmt.Errorf("seed operator %d: %w", chatID, err)
		}
		return nil
	})
}

// Store returns the order store.
func (a *App) Store() repository.Store { return a.store }

// Controller returns the order controller.
func (a *App) Controller() *checkout.Controller { return a.ctrl }

// TelegramRunOptions implements the runner's app contract.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return a.bot.RunOptions(a.cfg.CoreConfig(), sender.Options{})
}

// Close releases the order store.
func (a *App) Close() error {
	return a.store.Close()
}
