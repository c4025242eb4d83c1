package domain

import (
	"context"
	"time"
)

// Cache keeps recently looked-up processed receipts close to the API.
// Processed receipts never change once stored, so entries only leave the
// cache by expiry or eviction.
type Cache interface {
	// Get returns nil, nil when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "none", "memory" or "redis"
	Type string `envconfig:"TYPE" default:"none"`

	// TTL applied to cached lookups
	TTL time.Duration `envconfig:"TTL" default:"5m"`

	// Local LRU cache settings
	LocalMaxSize int           `envconfig:"LOCAL_MAX_SIZE" default:"10000"`
	LocalTTL     time.Duration `envconfig:"LOCAL_TTL" default:"1m"`

	// RedisAddr is host:port, or a comma-separated list for a cluster.
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"receipts:"`

	// EnableTwoPhase fronts Redis with the local LRU.
	EnableTwoPhase bool `envconfig:"TWO_PHASE"`
}
