package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"divvy/internal/amqp"
	"divvy/internal/config"
	gsheet "divvy/internal/export/google"
	"divvy/internal/log"
	"divvy/internal/storage"
	"divvy/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logCfg := log.DefaultConfig()
	if cfg.IsDevelopment() {
		logCfg = log.DevConfig()
	}
	logCfg.Component = log.ComponentWorker
	logger := log.New(logCfg)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	logger.Info("starting divvy-worker")

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open database", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The export pipeline needs a spreadsheet; without one the worker
	// only keeps the queue drained by acking and skipping events.
	var exportWorker *worker.ExportWorker
	if cfg.SheetsConfigured() {
		sheetsClient, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
		if err != nil {
			logger.Error("failed to initialize sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		logger.Info("sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)

		exportWorker = worker.NewExportWorker(store, sheetsClient, cfg.ExportBatchSize, cfg.ExportInterval, logger)

		if err := exportWorker.StartupCheck(ctx); err != nil {
			logger.Error("startup export check failed", log.FieldError, err.Error())
			// Keep running; the periodic scan retries.
		}
	} else {
		logger.Info("sheets export disabled, no Google settings provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	go func() {
		handler := func(event *amqp.LedgerEvent) error {
			if exportWorker == nil {
				return nil
			}
			return exportWorker.HandleLedgerEvent(ctx, event)
		}
		if err := amqpClient.ConsumeLedgerEvents(ctx, handler); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("event consumption failed", log.FieldError, err.Error())
			}
			cancel()
		}
	}()

	if exportWorker != nil {
		go exportWorker.Run(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	cancel()
	logger.Info("worker stopped")
}
