// Package config reads process configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is shared by every binary; each uses the parts it needs.
type Config struct {
	AppEnv   string
	AppPort  string
	LogLevel string

	StorageDriver string
	DatabaseURL   string
	DBMaxConns    int
	DBLockTimeout time.Duration

	JWTSecret          string
	AuthEnabled        bool
	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	OutboxBatchSize     int
	OutboxInterval      time.Duration
	OutboxRetention     time.Duration
	ExpirySweepInterval time.Duration
	CleanupInterval     time.Duration
}

// Load reads the configuration. godotenv never overrides variables that are
// already set in the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:   GetEnv("APP_ENV", "development"),
		AppPort:  GetEnv("APP_PORT", "8080"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),

		StorageDriver: GetEnv("STORAGE_DRIVER", StoragePostgres),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMaxConns:    GetEnvInt("DB_MAX_CONNS", 20),
		DBLockTimeout: GetEnvDuration("DB_LOCK_TIMEOUT", 5*time.Second),

		JWTSecret:          GetEnv("JWT_SECRET", ""),
		AuthEnabled:        GetEnv("AUTH_ENABLED", "true") == "true",
		IdempotencyEnabled: GetEnv("IDEMPOTENCY_ENABLED", "true") == "true",
		IdempotencyTTL:     GetEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   GetEnv("KAFKA_TOPIC", "explostock.events"),

		OutboxBatchSize:     GetEnvInt("OUTBOX_BATCH_SIZE", 100),
		OutboxInterval:      GetEnvDuration("OUTBOX_INTERVAL", 500*time.Millisecond),
		OutboxRetention:     GetEnvDuration("OUTBOX_RETENTION", 7*24*time.Hour),
		ExpirySweepInterval: GetEnvDuration("EXPIRY_SWEEP_INTERVAL", time.Hour),
		CleanupInterval:     GetEnvDuration("CLEANUP_INTERVAL", time.Hour),
	}

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for storage driver %q", cfg.StorageDriver)
		}
	case StorageMemory:
	default:
		return cfg, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.AuthEnabled && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required when AUTH_ENABLED=true")
	}
	return cfg, nil
}

// Development reports whether APP_ENV is development.
func (c Config) Development() bool {
	return c.AppEnv == "development"
}

// GetEnv returns the variable or defaultValue when unset or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt parses an integer variable; unparsable values fall back to
// defaultValue.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// GetEnvDuration parses a time.ParseDuration variable.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
