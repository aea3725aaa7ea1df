// Package main содержит точку входа для воркера сверки выдачи грантов.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/credit-ledger/internal/app/reconciler"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting reconciler", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := reconciler.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize reconciler", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("reconciler stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("reconciler stopped gracefully")
}
