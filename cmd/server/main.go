package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"staffbook/internal/app/server"
	"staffbook/internal/platform/config"
	"staffbook/internal/platform/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = os.Stderr.WriteString("failed to load .env: " + err.Error() + "\n")
		os.Exit(1)
	}
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFilePath)
	log := logger.From(context.Background())

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	runErr := app.Run(ctx)
	if err := app.Close(); err != nil {
		log.Warn().Err(err).Msg("close failed")
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
