package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"finanzas/internal/cli"
	"finanzas/internal/config"
	applog "finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/worker"

	"golang.org/x/sync/errgroup"
)

const summaryInterval = 15 * time.Minute

func main() {
	cfg, logger, err := cli.LoadConfig(applog.ComponentAudit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Configuration validation failed:", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "AMQP_URL is required", errors.New("no broker configured"))
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.Info("Starting finanzas-audit", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	if err := run(ctx, cfg, logger); err != nil {
		cli.Fatal(logger, "Audit worker failed", err)
	}
	logger.Info("Audit worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := cli.ConnectAMQP(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	// The audit worker only reads, so its ledger publishes nothing.
	ledger := services.NewLedger(store, false, nil)
	audit := worker.NewAuditWorker(logger, worker.LookupsFromLedger(ledger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeLedgerEvents(gctx, audit.HandleLedgerEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(summaryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				audit.LogSummary(gctx)
			case <-gctx.Done():
				audit.LogSummary(context.Background())
				return nil
			}
		}
	})
	return g.Wait()
}
