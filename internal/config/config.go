// Package config loads application configuration from environment
// variables (optionally seeded from a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage and session backends.
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable; defaults target a local development run.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"dev"`                     // dev, test or prod
	Port        string `env:"APP_PORT" envDefault:"8080"`                   // HTTP port to listen on
	ServiceName string `env:"SERVICE_NAME" envDefault:"TapTap Game Server"` // reported by /health

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"` // users, saves, purchases
	SessionBackend string `env:"SESSION_BACKEND" envDefault:"redis"`  // falls back to storage backend without Redis

	DBUser    string `env:"DB_USER"`
	DBPass    string `env:"DB_PASS"`
	DBHost    string `env:"DB_HOST"`
	DBPort    string `env:"DB_PORT" envDefault:"3306"`
	DBName    string `env:"DB_NAME" envDefault:"cardgame"`
	DBMigrate bool   `env:"DB_MIGRATE" envDefault:"true"` // apply embedded migrations on startup

	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionRetention  time.Duration `env:"SESSION_RETENTION" envDefault:"1h"` // how long expired tokens stay recognisable
	SessionPurgeEvery time.Duration `env:"SESSION_PURGE_EVERY" envDefault:"10m"`
	StorageTimeout    time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`

	StarterGems  int64  `env:"STARTER_GEMS" envDefault:"100"`
	MaxBody      string `env:"MAX_BODY" envDefault:"1M"`
	MaxSaveBytes int    `env:"MAX_SAVE_BYTES" envDefault:"262144"`
	CatalogPath  string `env:"CATALOG_PATH"`

	ReceiptSecret           string   `env:"RECEIPT_SECRET"`
	ReceiptSignedPlatforms  []string `env:"RECEIPT_SIGNED_PLATFORMS" envSeparator:"," envDefault:"android,ios"`
	ReceiptSandboxPlatforms []string `env:"RECEIPT_SANDBOX_PLATFORMS" envSeparator:","`

	CORSEchoOrigin bool `env:"CORS_ECHO_ORIGIN" envDefault:"false"`

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Queue     QueueConfig
}

// Load reads .env (when present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))
	cfg.RateLimit.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendMySQL:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q (memory|mysql)", c.StorageBackend)
	}
	switch c.SessionBackend {
	case BackendMemory, BackendMySQL, BackendRedis:
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q (redis|mysql|memory)", c.SessionBackend)
	}
	if (c.StorageBackend == BackendMySQL || c.SessionBackend == BackendMySQL) && (c.DBHost == "" || c.DBUser == "") {
		return errors.New("mysql backend requires DB_HOST and DB_USER")
	}
	if c.SessionBackend == BackendMySQL && c.StorageBackend != BackendMySQL {
		return errors.New("SESSION_BACKEND=mysql requires STORAGE_BACKEND=mysql")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.StorageTimeout <= 0 {
		return errors.New("STORAGE_TIMEOUT must be positive")
	}
	if c.StarterGems < 0 {
		return errors.New("STARTER_GEMS must not be negative")
	}
	return nil
}

// IsProd reports whether the server runs in production mode.
func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") }
