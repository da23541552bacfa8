package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"finanzas/internal/auth"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	"finanzas/internal/config"
	apphttp "finanzas/internal/http"
	applog "finanzas/internal/log"
	"finanzas/internal/services"

	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func main() {
	cfg, logger, err := cli.LoadConfig(applog.ComponentApp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Configuration validation failed:", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		cli.Fatal(logger, "Server error", err)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	amqpClient, err := cli.ConnectAMQP(ctx, cfg, logger)
	if err != nil {
		return err
	}
	var publisher services.Publisher
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	revoked := auth.NewRevocationList(time.Now)
	authSvc, err := auth.NewService(store.Users, auth.Options{
		Secret:     []byte(cfg.JWTSecret),
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
		Revoked:    revoked,
	})
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	srv, err := apphttp.NewServer(apphttp.Deps{
		Auth:   authSvc,
		Ledger: services.NewLedger(store, cfg.EnforceOwnership, publisher),
		Users:  store.Users,
		Probe:  store,
	}, apphttp.Options{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ExposeErrorDetails: cfg.ExposeErrorDetails,
		AuthRatePerMinute:  cfg.AuthRatePerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	caches := cache.NewManager(revoked)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		caches.Start(gctx, cacheCleanupInterval)
		caches.Wait()
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting finanzas server",
			"port", cfg.Port,
			"driver", cfg.DBDriver,
			"enforce_ownership", cfg.EnforceOwnership,
			"events", amqpClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		m := srv.Metrics()
		logger.Info("HTTP server stopped",
			"total_requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"rejected_auth_attempts", srv.RejectedAuthAttempts())
		return err
	})

	return g.Wait()
}
