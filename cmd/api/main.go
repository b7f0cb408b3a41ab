package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/officeladder/ladder/internal/app"
	"github.com/officeladder/ladder/internal/avatar"
	"github.com/officeladder/ladder/internal/guard"
	"github.com/officeladder/ladder/internal/infra"
	"github.com/officeladder/ladder/internal/projection"
	"github.com/officeladder/ladder/internal/repository"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run(cfg *infra.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Store
	var store repository.Store
	switch cfg.StoreDriver {
	case infra.StoreDriverMemory:
		store = repository.NewMemoryStore()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		logger.Info("connected to postgres")

		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		store = repository.NewPostgresStore(pool)
	}

	// Leaderboard cache
	var cache projection.Store
	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		cache = projection.NewRedisStore(client)
		logger.Info("leaderboard cache backed by redis")
	} else {
		cache = projection.NewInMemoryStore()
	}

	// Avatars
	var (
		avatars   avatar.Store
		avatarDir string
	)
	switch cfg.AvatarBackend {
	case infra.AvatarBackendLocal:
		local, err := avatar.NewLocalStore(cfg.AvatarDir, app.AvatarURLPrefix)
		if err != nil {
			return err
		}
		avatars, avatarDir = local, local.Dir()
	case infra.AvatarBackendS3:
		s3Store, err := avatar.NewS3Store(ctx, avatar.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			KeyPrefix:       cfg.S3KeyPrefix,
		})
		if err != nil {
			return fmt.Errorf("init s3 avatars: %w", err)
		}
		avatars = s3Store
	}

	a := app.New(app.Deps{
		Store:          store,
		Cache:          cache,
		CacheTTL:       cfg.LeaderboardCacheTTL,
		Avatars:        avatars,
		AvatarMaxBytes: cfg.AvatarMaxBytes,
		AvatarDir:      avatarDir,
		Location:       loc,
		ChatRateLimit:  cfg.ChatRateLimit,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	if cfg.SeedSamplePlayers {
		n, err := a.Players.SeedSamplePlayers(ctx)
		if err != nil {
			return fmt.Errorf("seed sample players: %w", err)
		}
		if n > 0 {
			logger.Info("sample players seeded", "count", n)
		}
	}

	sched, err := infra.NewScheduler(logger)
	if err != nil {
		return err
	}
	if cfg.ReconcileInterval > 0 {
		if err := sched.AddReconcile(ctx, a.Prizes, cfg.ReconcileInterval); err != nil {
			return err
		}
	}
	if cfg.PairingInterval > 0 {
		if err := sched.AddPairing(ctx, a.Queue, cfg.PairingInterval); err != nil {
			return err
		}
	}
	if err := sched.AddSweep(a.ChatLimiter, 5*time.Minute); err != nil {
		return err
	}
	sched.Start()
	defer sched.Shutdown()

	// The relay binary cannot see an in-memory outbox, so relay here instead.
	if cfg.StoreDriver == infra.StoreDriverMemory && cfg.KafkaEnabled {
		producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
		defer producer.Close()
		poller := infra.NewOutboxPoller(store.Outbox(), producer, guard.NewCircuitBreaker(5, 30*time.Second),
			cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
		poller.Start(ctx)
	}

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "store", cfg.StoreDriver, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
