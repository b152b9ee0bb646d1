package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"divvy/internal/amqp"
	"divvy/internal/auth"
	"divvy/internal/billing"
	"divvy/internal/config"
	apphttp "divvy/internal/http"
	"divvy/internal/log"
	"divvy/internal/services"
	"divvy/internal/storage"
	"divvy/internal/usage"
)

func main() {
	// Load .env for local development; ignore errors elsewhere.
	_ = godotenv.Load()

	cfg := config.Load()

	logCfg := log.DefaultConfig()
	if cfg.IsDevelopment() {
		logCfg = log.DevConfig()
	}
	logCfg.Component = log.ComponentApp
	logger := log.New(logCfg)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open database", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	// AMQP is optional; without a broker the export pipeline falls back
	// to the worker's periodic scan.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without event publishing", log.FieldError, err.Error())
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
		}
	}

	gate := usage.NewGate(store, logger)
	ledger := services.NewLedgerService(store, gate, publisher, logger)
	groups := services.NewGroupService(store, gate, ledger, logger)

	var billingClient *billing.Client
	if cfg.CheckoutAPIKey != "" {
		billingClient = billing.NewClient(cfg.CheckoutAPIKey, cfg.CheckoutSandbox, cfg.CheckoutSuccessURL, billing.Products{
			ProMonthly:      cfg.CheckoutProductProMonthly,
			ProAnnually:     cfg.CheckoutProductProAnnual,
			BusinessMonthly: cfg.CheckoutProductBusinessMonthly,
			BusinessAnnual:  cfg.CheckoutProductBusinessAnnual,
		}, logger)
		logger.Info("checkout enabled", "sandbox", cfg.CheckoutSandbox)
	} else {
		logger.Info("checkout disabled, no CHECKOUT_API_KEY provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Groups:        groups,
		Ledger:        ledger,
		Authenticator: auth.NewPasswordAuthenticator(store),
		Tokens:        auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL),
		Gate:          gate,
		Billing:       billingClient,
		Logger:        logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("starting divvy server", "port", cfg.Port, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}
