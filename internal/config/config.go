package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/time/rate"
)

// Store drivers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"8080"`
	// StaticDir holds the client bundle (app.css, lobby.js, room.js); it is
	// not part of this repository.
	StaticDir string `env:"STATIC_DIR" envDefault:"static"`

	// Security
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080,http://localhost:3000"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Rate Limiting
	RateLimitAPI      float64 `env:"RATE_LIMIT_API" envDefault:"10"`
	RateLimitWS       float64 `env:"RATE_LIMIT_WS" envDefault:"5"`
	RateLimitMessages float64 `env:"RATE_LIMIT_MESSAGES" envDefault:"20"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"` // Options: debug, info, warn, error, silent
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// WebSocket
	MaxMessageSize int64 `env:"MAX_MESSAGE_SIZE" envDefault:"4096"`

	// Room store
	StoreDriver          string        `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath           string        `env:"SQLITE_PATH" envDefault:"data/rooms.db"`
	StorePollInterval    time.Duration `env:"STORE_POLL_INTERVAL" envDefault:"500ms"`
	MaxTransactRetries   int           `env:"MAX_TRANSACT_RETRIES" envDefault:"25"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	TeardownTimeout      time.Duration `env:"TEARDOWN_TIMEOUT" envDefault:"5s"`
	ClaimVacantOwnership bool          `env:"CLAIM_VACANT_OWNERSHIP" envDefault:"false"`

	// Telemetry
	OTELEndpoint string `env:"OTEL_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"goat-rooms"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AllowedOrigins = parseOrigins(cfg.AllowedOrigins)
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.MaxTransactRetries <= 0 {
		return fmt.Errorf("MAX_TRANSACT_RETRIES must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("MAX_MESSAGE_SIZE must be positive")
	}
	return nil
}

// APILimit is the per-IP API request rate
func (c *Config) APILimit() rate.Limit { return rate.Limit(c.RateLimitAPI) }

// WSLimit is the per-IP websocket upgrade rate
func (c *Config) WSLimit() rate.Limit { return rate.Limit(c.RateLimitWS) }

// MessageLimit is the per-connection inbound frame rate
func (c *Config) MessageLimit() rate.Limit { return rate.Limit(c.RateLimitMessages) }

// parseOrigins trims and drops empty origins
func parseOrigins(origins []string) []string {
	result := make([]string, 0, len(origins))
	for _, p := range origins {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
