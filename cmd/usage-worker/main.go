package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"divvy/internal/config"
	"divvy/internal/log"
	"divvy/internal/storage"
	"divvy/internal/usage"
	"divvy/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logCfg := log.DefaultConfig()
	if cfg.IsDevelopment() {
		logCfg = log.DevConfig()
	}
	logCfg.Component = log.ComponentUsage
	logger := log.New(logCfg)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	logger.Info("starting usage-worker", "interval", cfg.UsageRefreshInterval.String())

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open database", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	gate := usage.NewGate(store, logger)
	refresher := worker.NewUsageRefresher(store, gate, cfg.UsageRefreshInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	refresher.Run(ctx)
	logger.Info("usage-worker stopped")
}
