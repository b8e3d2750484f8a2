package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "REPODESK"

// Storage backends for tab-scoped state.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config holds all client configuration loaded from environment variables.
type Config struct {
	// Untagged fields are read only from the prefixed variable.

	// General
	Environment string `default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Backend
	APIBaseURL     string        `envconfig:"API_BASE_URL" default:"http://localhost:8000"`
	WSBaseURL      string        `envconfig:"WS_BASE_URL" default:"ws://localhost:8000/ws"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	LoginMode      string        `envconfig:"LOGIN_MODE" default:"users"` // "users" or "oauth"

	// Push channel
	ReconnectInterval    time.Duration `envconfig:"RECONNECT_INTERVAL" default:"3s"`
	MaxReconnectAttempts int           `envconfig:"MAX_RECONNECT_ATTEMPTS" default:"5"`

	// Tab storage
	Storage    string `envconfig:"STORAGE" default:"memory"` // "memory" or "sqlite"
	StorageDSN string `envconfig:"STORAGE_DSN"`

	// Optional
	RoutesFile  string `envconfig:"ROUTES_FILE"`  // YAML route table; built-in table when empty
	MetricsAddr string `envconfig:"METRICS_ADDR"` // serve /metrics, /health and /ready when set

	// CLI credentials
	Username string
	Password string
}

// Development reports whether human-readable console logging should be used.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

// SQLiteDSN returns the configured DSN or a file next to the working directory.
func (c *Config) SQLiteDSN() string {
	if c.StorageDSN != "" {
		return c.StorageDSN
	}
	return "repodesk.db"
}

// Validate checks enumerated settings and numeric bounds.
func (c *Config) Validate() error {
	switch c.LoginMode {
	case "users", "oauth":
	default:
		return fmt.Errorf("LOGIN_MODE must be users or oauth, got %q", c.LoginMode)
	}
	switch c.Storage {
	case StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("STORAGE must be memory or sqlite, got %q", c.Storage)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	return nil
}

// Load reads configuration from REPODESK_* environment variables.
func Load() (*Config, error) {
	return LoadWithPrefix(Prefix)
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
