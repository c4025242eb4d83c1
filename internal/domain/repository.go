// Package domain defines the core interfaces and types for the receipt processor.
package domain

import (
	"context"
	"time"
)

// Repository stores processed receipts.
// Insert always generates a fresh unique id; Lookup returns ErrNotFound
// for ids that were never issued. Implementations return copies, never
// references into their storage.
type Repository interface {
	Insert(ctx context.Context, result ScoringResult, receipt Receipt) (string, error)
	Lookup(ctx context.Context, id string) (*ProcessedReceipt, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the store backend: "memory", "bolt", "sqlite", "postgres"
	// (lib/pq) or "pgx".
	Driver string `envconfig:"DRIVER" default:"memory"`

	BoltPath   string `envconfig:"BOLT_PATH" default:"./receipts.bolt"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./receipts.db"`

	// PostgreSQL specific
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"receipts"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE"`

	// Connection pool settings
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME"`
}
