// Package app holds process configuration and the logger.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config holds runtime configuration read from the environment.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"watchcraft.db"`

	// SeedScenario is loaded into an empty store at start-up. Empty seeds
	// only the default users.
	SeedScenario   string `envconfig:"SEED_SCENARIO" default:"demo"`
	RolePolicyFile string `envconfig:"ROLE_POLICY_FILE"`

	LowStockThreshold int           `envconfig:"LOW_STOCK_THRESHOLD" default:"2"`
	LowStockInterval  time.Duration `envconfig:"LOW_STOCK_INTERVAL" default:"1h"`

	Currency string `envconfig:"CURRENCY" default:"INR"`

	CORSOrigins     []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	RateLimitPerMin int      `envconfig:"RATE_LIMIT_PER_MIN" default:"120"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must be set for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (use memory or sqlite)", c.StoreDriver)
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
