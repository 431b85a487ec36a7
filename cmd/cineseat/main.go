package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/cineseat/docs"
	"github.com/kirinyoku/cineseat/internal/app"
	"github.com/kirinyoku/cineseat/internal/config"
	"github.com/kirinyoku/cineseat/internal/logger"
)

// @title CineSeat API
// @version 1.0
// @description Seat inventory, booking and ticket check-in for a cinema chain.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := context.Background()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
