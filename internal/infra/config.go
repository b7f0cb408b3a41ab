package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Avatar backends.
const (
	AvatarBackendLocal = "local"
	AvatarBackendS3    = "s3"
	AvatarBackendNone  = "none"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"ladder"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"ladder"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"ladder"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// Connection pool
	PGMaxConns        int32         `env:"PG_MAX_CONNS" envDefault:"10"`
	PGMinConns        int32         `env:"PG_MIN_CONNS" envDefault:"1"`
	PGMaxConnLifetime time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
	PGMaxConnIdleTime time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"5m"`

	// Redis leaderboard cache; empty keeps it in process.
	RedisURL            string        `env:"REDIS_URL"`
	LeaderboardCacheTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"30s"`

	// Server
	APIPort  int    `env:"API_PORT" envDefault:"3001"`
	Timezone string `env:"TIMEZONE" envDefault:"Local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Kafka
	KafkaBrokers       string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Prize reconcile job; zero disables it.
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"15m"`

	// Queue pairing sweep; zero disables it.
	PairingInterval time.Duration `env:"PAIRING_INTERVAL" envDefault:"1m"`

	// Avatars
	AvatarBackend  string `env:"AVATAR_BACKEND" envDefault:"local"`
	AvatarDir      string `env:"AVATAR_DIR" envDefault:"uploads/avatars"`
	AvatarMaxBytes int64  `env:"AVATAR_MAX_BYTES" envDefault:"5242880"`

	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
	S3KeyPrefix       string `env:"S3_KEY_PREFIX" envDefault:"avatars/"`

	// Chat commands allowed per user per minute; zero disables limiting.
	ChatRateLimit int `env:"CHAT_RATE_LIMIT" envDefault:"20"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	SeedSamplePlayers bool `env:"SEED_SAMPLE_PLAYERS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	switch c.AvatarBackend {
	case AvatarBackendLocal, AvatarBackendNone:
	case AvatarBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when AVATAR_BACKEND=s3")
		}
		if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
		}
	default:
		return fmt.Errorf("AVATAR_BACKEND must be local, s3 or none, got %q", c.AvatarBackend)
	}
	if c.AvatarMaxBytes <= 0 {
		return fmt.Errorf("AVATAR_MAX_BYTES must be positive")
	}
	if c.KafkaEnabled && strings.TrimSpace(c.KafkaBrokers) == "" {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	if c.StoreDriver == StoreDriverPostgres {
		if c.PGMaxConns <= 0 {
			return fmt.Errorf("PG_MAX_CONNS must be positive")
		}
		if c.PGMinConns < 0 || c.PGMinConns > c.PGMaxConns {
			return fmt.Errorf("PG_MIN_CONNS must be between 0 and PG_MAX_CONNS")
		}
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("RECONCILE_INTERVAL cannot be negative")
	}
	if c.PairingInterval < 0 {
		return fmt.Errorf("PAIRING_INTERVAL cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TIMEZONE. "Local" and "" use the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
