package main

import (
	"context"
	"log"

	"github.com/m3rciful/blikbot/core/bootstrap"
	corecmd "github.com/m3rciful/blikbot/core/cmd"
	"github.com/m3rciful/blikbot/internal/app"
	"github.com/m3rciful/blikbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Build(ctx, cfg.(*config.Config), bootstrap.Options{})
		},
	})
	if err != nil {
		log.Fatalf("blikbot: %v", err)
	}
}
