package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the marketplace service.
type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RabbitMQURL string `env:"RABBITMQ_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR"`

	// CommissionPercent is the platform's cut of every sale, in whole
	// percentage points. Supplied by operations, never hardcoded.
	CommissionPercent int64 `env:"COMMISSION_PERCENT" envDefault:"10"`

	DBLockTimeout   time.Duration `env:"DB_LOCK_TIMEOUT" envDefault:"3s"`
	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE" envDefault:"10"`
	OutboxInterval  time.Duration `env:"OUTBOX_INTERVAL" envDefault:"1s"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"30s"`
}

// Load reads configuration from the environment (local .env files override
// nothing that is already set).
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.CommissionPercent < 0 || cfg.CommissionPercent > 100 {
		return nil, fmt.Errorf("COMMISSION_PERCENT must be between 0 and 100, got %d", cfg.CommissionPercent)
	}

	return &cfg, nil
}
