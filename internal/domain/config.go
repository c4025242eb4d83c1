package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by LoadConfig.
const EnvPrefix = "RECEIPTS"

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" envconfig:"SERVER"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" envconfig:"REPOSITORY"`
	Cache      CacheConfig      `json:"cache" envconfig:"CACHE"`
	EventBus   EventBusConfig   `json:"eventBus" envconfig:"BUS"`
	Worker     WorkerConfig     `json:"worker" envconfig:"WORKER"`

	// Observability
	Logging LoggingConfig `json:"logging" envconfig:"LOG"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string `json:"host" envconfig:"HOST" default:"0.0.0.0"`
	Port            int    `json:"port" envconfig:"PORT" default:"2000"`
	ReadTimeout     int    `json:"readTimeout" envconfig:"READ_TIMEOUT" default:"30"`         // seconds
	WriteTimeout    int    `json:"writeTimeout" envconfig:"WRITE_TIMEOUT" default:"30"`       // seconds
	ShutdownTimeout int    `json:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT" default:"10"` // seconds

	// MaxInFlight caps concurrent POST /receipts/process requests; 0 means no cap.
	MaxInFlight int `json:"maxInFlight" envconfig:"MAX_IN_FLIGHT"`
}

// WorkerConfig controls the async ingestion worker.
type WorkerConfig struct {
	Enabled bool `json:"enabled" envconfig:"ENABLED"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" envconfig:"LEVEL" default:"info"`   // debug, info, warn, error
	Format string `json:"format" envconfig:"FORMAT" default:"json"` // json, text
}

// DefaultConfig returns the configuration used when no environment is set:
// in-memory store, no cache, in-process channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            2000,
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		Repository: RepositoryConfig{
			Driver:       "memory",
			BoltPath:     "./receipts.bolt",
			SQLitePath:   "./receipts.db",
			PostgresHost: "localhost",
			PostgresPort: 5432,
			PostgresDB:   "receipts",
		},
		Cache: CacheConfig{
			Type:           "none",
			TTL:            5 * time.Minute,
			LocalMaxSize:   10000,
			LocalTTL:       time.Minute,
			RedisAddr:      "localhost:6379",
			RedisKeyPrefix: "receipts:",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
			NATSMaxReconnects: 10,
			NATSReconnectWait: 5,
			NATSQueueGroup:    "receipts-workers",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads an optional .env file from envFile (when non-empty) and then
// the RECEIPTS_* environment, e.g. RECEIPTS_SERVER_PORT or RECEIPTS_REPOSITORY_DRIVER.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return cfg, nil
}
