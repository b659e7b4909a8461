// Package conf loads the runtime configuration from YAML, environment
// variables, and defaults via Viper.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Settings is the root configuration.
type Settings struct {
	Database      DatabaseSettings     `mapstructure:"database"`
	Runner        RunnerSettings       `mapstructure:"runner"`
	Stats         StatsSettings        `mapstructure:"stats"`
	Notifications NotificationSettings `mapstructure:"notifications"`
	Metrics       MetricsSettings      `mapstructure:"metrics"`
	Logging       LoggingSettings      `mapstructure:"logging"`
}

// DatabaseSettings selects and configures the storage backend.
type DatabaseSettings struct {
	Driver string `mapstructure:"driver"`
	// DSN is the MySQL connection string, or the SQLite file path.
	DSN string `mapstructure:"dsn"`
}

// RunnerSettings controls batch execution.
type RunnerSettings struct {
	// Concurrency bounds the worker pool over (rule, ad group) units.
	Concurrency int `mapstructure:"concurrency"`
	// Timeout bounds one full batch run.
	Timeout Duration `mapstructure:"timeout"`
	// HistoryRetention is how long run history is kept before the
	// retention cleanup removes it. Zero disables cleanup.
	HistoryRetention Duration `mapstructure:"history_retention"`
}

// StatsSettings points the runner at its reporting data.
type StatsSettings struct {
	// File is a YAML snapshot of per-ad-group stat bundles, used for
	// dry runs and local development.
	File string `mapstructure:"file"`
}

// NotificationSettings configures rule notification delivery.
type NotificationSettings struct {
	// URLs are shoutrrr service URLs (smtp://..., slack://...).
	URLs []string `mapstructure:"urls"`
}

// MetricsSettings configures the Prometheus scrape endpoint.
type MetricsSettings struct {
	// Addr is the listen address for /metrics during a run, e.g.
	// "localhost:9090". Empty disables the listener.
	Addr string `mapstructure:"addr"`
}

// LoggingSettings configures the structured logger.
type LoggingSettings struct {
	Level string `mapstructure:"level"`
}

// Load reads the configuration from the given file (optional), the
// environment (ADRULES_ prefix), and defaults.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "adrules.db")
	v.SetDefault("runner.concurrency", 8)
	v.SetDefault("runner.timeout", "10m")
	v.SetDefault("runner.history_retention", (90 * 24 * time.Hour).String())
	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix("ADRULES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	switch s.Database.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unsupported database driver %q", s.Database.Driver)
	}
	if s.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if s.Runner.Concurrency < 1 {
		return fmt.Errorf("runner concurrency must be at least 1, got %d", s.Runner.Concurrency)
	}
	if s.Runner.HistoryRetention < 0 {
		return fmt.Errorf("history retention must not be negative")
	}
	return nil
}
