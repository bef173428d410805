package config

// This file defines the Redis client constructor.  Redis backs sessions,
// distributed rate limiting and the products response cache.  If the
// connection fails during startup the constructor returns nil and
// callers degrade gracefully: sessions fall back to the storage backend,
// caching and rate limiting are disabled.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig lists the connection settings.  REDIS_ADDR is used unless
// both REDIS_HOST and REDIS_PORT are set.
type RedisConfig struct {
	Host          string `env:"REDIS_HOST"`
	Port          string `env:"REDIS_PORT"`
	Addr          string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password      string `env:"REDIS_PASSWORD"`
	DB            int    `env:"REDIS_DB" envDefault:"0"`
	TLS           bool   `env:"REDIS_TLS" envDefault:"false"`
	SessionPrefix string `env:"REDIS_SESSION_PREFIX" envDefault:"sess"`
}

// Address resolves the host:port to dial.
func (c RedisConfig) Address() string {
	if c.Host != "" && c.Port != "" {
		return c.Host + ":" + c.Port
	}
	return c.Addr
}

// NewRedisClient instantiates a Redis client and pings it.  The returned
// client is nil if a connection cannot be established.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Address(),
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
