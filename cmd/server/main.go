package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalong/signalong-core/internal/config"
	"github.com/signalong/signalong-core/internal/errorreporting"
	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/secrets"
	"github.com/signalong/signalong-core/internal/server"
	"github.com/signalong/signalong-core/internal/tracing"
)

func main() {
	// A missing .env is fine; production uses the process environment.
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	logger.Info("configuration loaded",
		"api_base_url", secrets.MaskURL(cfg.APIBaseURL),
		"api_token", secrets.Mask(cfg.APIToken),
		"admin_token", secrets.Mask(cfg.AdminAPIToken),
		"warm_threshold", cfg.WarmPriorityThreshold,
	)

	environment := os.Getenv("ENV")
	if environment == "" {
		environment = "development"
	}
	if err := errorreporting.Init(environment); err != nil {
		logger.Warn("sentry init failed, continuing without it", "error", err)
	}
	defer errorreporting.Flush(2 * time.Second)

	shutdownTracing, err := tracing.Init("signalong-core")
	if err != nil {
		logger.Warn("tracing init failed, continuing without it", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	srv, err := server.New(cfg)
	if err != nil {
		logger.Error("server setup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
}
