// Package cli holds the start-up steps shared by the finanzas binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finanzas/internal/amqp"
	"finanzas/internal/config"
	applog "finanzas/internal/log"
	"finanzas/internal/storage"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads and validates the environment, then installs the
// configured logger as the slog default.
func LoadConfig(component string) (*config.Config, *applog.Logger, error) {
	LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := cfg.Logger(component)
	applog.SetDefault(logger)
	return cfg, logger, nil
}

// OpenStore connects to the configured database.
func OpenStore(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*storage.Store, error) {
	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.InfoContext(ctx, "Store ready", "driver", cfg.DBDriver)
	return store, nil
}

// ConnectAMQP dials the broker when AMQP_URL is set. It returns nil
// without error when messaging is disabled.
func ConnectAMQP(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.InfoContext(ctx, "AMQP disabled, ledger events will not be published")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect AMQP: %w", err)
	}
	logger.InfoContext(ctx, "AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, applog.FieldError, err)
	os.Exit(1)
}
