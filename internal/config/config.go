// Package config provides configuration loading for the geometa CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/canonica-labs/geometa/internal/errors"
)

// Supported engine drivers.
var Drivers = []string{"mysql", "postgres", "sqlite", "duckdb"}

// Config holds the application configuration.
type Config struct {
	// Engine connection
	Engine EngineConfig `mapstructure:"engine"`

	// Schema naming and spatial reference
	Schema SchemaConfig `mapstructure:"schema"`

	// Backfill job pacing
	Backfill BackfillConfig `mapstructure:"backfill"`

	// Cache of decoded shadow geometries
	Cache CacheConfig `mapstructure:"cache"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Extensions is the path of the declarative extensions file.
	Extensions string `mapstructure:"extensions"`
}

// EngineConfig selects and connects the engine adapter.
type EngineConfig struct {
	Driver             string        `mapstructure:"driver"`
	DSN                string        `mapstructure:"dsn"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	CreateDatabase     bool          `mapstructure:"create_database"`
}

// SchemaConfig holds table naming.
type SchemaConfig struct {
	TablePrefix string `mapstructure:"table_prefix"`
	SRID        int    `mapstructure:"srid"`
}

// BackfillConfig holds backfill job settings.
type BackfillConfig struct {
	PageSize int `mapstructure:"page_size"`

	// PagesPerSecond limits the page rate. Zero means unlimited.
	PagesPerSecond float64 `mapstructure:"pages_per_second"`
}

// CacheConfig holds reader cache settings.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Driver:             "sqlite",
			DSN:                "",
			SlowQueryThreshold: 500 * time.Millisecond,
		},
		Schema: SchemaConfig{
			TablePrefix: "wp_",
			SRID:        4326,
		},
		Backfill: BackfillConfig{
			PageSize: 100,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".geometa"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("geometa")
		v.SetConfigType("yaml")
	}

	// GEOMETA_ENGINE_DSN overrides engine.dsn.
	v.SetEnvPrefix("GEOMETA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot check by type.
func (c *Config) Validate() error {
	c.Engine.Driver = strings.ToLower(strings.TrimSpace(c.Engine.Driver))
	known := false
	for _, d := range Drivers {
		if c.Engine.Driver == d {
			known = true
			break
		}
	}
	if !known {
		return errors.NewUnsupportedDriver(c.Engine.Driver)
	}
	if c.Schema.SRID <= 0 {
		return errors.NewConfigInvalid("schema.srid", "must be positive")
	}
	if c.Backfill.PageSize <= 0 {
		return errors.NewConfigInvalid("backfill.page_size", "must be positive")
	}
	if c.Backfill.PagesPerSecond < 0 {
		return errors.NewConfigInvalid("backfill.pages_per_second", "cannot be negative")
	}
	if c.Cache.TTL < 0 {
		return errors.NewConfigInvalid("cache.ttl", "cannot be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return errors.NewConfigInvalid("logging.format", "must be json or console")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.driver", "sqlite")
	v.SetDefault("engine.dsn", "")
	v.SetDefault("engine.slow_query_threshold", "500ms")
	v.SetDefault("engine.create_database", false)
	v.SetDefault("schema.table_prefix", "wp_")
	v.SetDefault("schema.srid", 4326)
	v.SetDefault("backfill.page_size", 100)
	v.SetDefault("backfill.pages_per_second", 0)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("extensions", "")
}
