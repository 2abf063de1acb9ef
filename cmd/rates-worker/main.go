package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cuotas/internal/config"
	applog "cuotas/internal/log"
	"cuotas/internal/services"
	"cuotas/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.SetDefault("rates-worker")
	logger.Info("Starting rates-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.RatesSourceURL == "" {
		logger.Error("RATES_SOURCE_URL is required for the rates worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ratesService := services.NewRatesService(repo, cfg.RatesSourceURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Exchange rate refresher configured",
		"interval", cfg.RatesInterval,
		"source_url", cfg.RatesSourceURL,
		"sqlite_db", cfg.SQLiteDBPath)

	go func() {
		if err := ratesService.Run(ctx, cfg.RatesInterval); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Rate refresher stopped", "error", err)
			}
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down rates-worker...")
	cancel()

	<-time.After(2 * time.Second)
	logger.Info("Rates-worker shutdown complete")
}
