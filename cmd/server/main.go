package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HMasataka/novavault/internal/browser"
	"github.com/HMasataka/novavault/internal/config"
	"github.com/HMasataka/novavault/internal/launcher"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Default()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := launcher.New(cfg, browser.NewSystemOpener(), launcher.DefaultOptions())
	if err := l.Start(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
