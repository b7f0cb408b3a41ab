package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/officeladder/ladder/internal/guard"
	"github.com/officeladder/ladder/internal/infra"
	"github.com/officeladder/ladder/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver != infra.StoreDriverPostgres {
		return fmt.Errorf("outbox relay needs STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	if !cfg.KafkaEnabled {
		return fmt.Errorf("outbox relay needs KAFKA_ENABLED=true")
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-relay connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	store := repository.NewPostgresStore(pool)
	poller := infra.NewOutboxPoller(store.Outbox(), producer, guard.NewCircuitBreaker(5, 30*time.Second),
		cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
	poller.Start(ctx)

	<-ctx.Done()
	logger.Info("outbox-relay shutting down")
	return nil
}
