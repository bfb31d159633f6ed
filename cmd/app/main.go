package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safiri-store/internal/config"
	"safiri-store/internal/httpserver"
	"safiri-store/internal/logging"
	"safiri-store/internal/metrics"
	"safiri-store/internal/seed"
	"safiri-store/internal/store"
	"safiri-store/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting safiri store", "env", cfg.AppEnv, "db_path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	provider := store.NewProvider(cfg.DBPath, logger, metricRegistry)
	st, err := provider.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer provider.Close()

	if err := st.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	if cfg.SeedDemoData {
		if err := seed.Run(ctx, st, logger); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
