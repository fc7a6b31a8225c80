package config

import (
	"fmt"
	"time"

	"github.com/terracastio/terracast/internal/compression"
	"github.com/terracastio/terracast/internal/forecast"
)

// Config represents the complete application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Extraction   ExtractionConfig   `mapstructure:"extraction"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Forecast     forecast.Config    `mapstructure:"forecast"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Aggregate    AggregateConfig    `mapstructure:"aggregate"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host     string `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort int    `mapstructure:"http_port"` // HTTP server port
}

// ExtractionConfig configures where observation series are read from
type ExtractionConfig struct {
	DataDir string `mapstructure:"data_dir"` // Root directory of per-dataset variable files
}

// RegistryConfig configures trained model persistence and freshness
type RegistryConfig struct {
	Dir                string        `mapstructure:"dir"`                 // Directory holding model artifacts
	RetrainingInterval time.Duration `mapstructure:"retraining_interval"` // Max age before a stored model is stale
	MaxGrowthFraction  float64       `mapstructure:"max_growth_fraction"` // Max series growth before a stored model is stale
	Compression        string        `mapstructure:"compression"`         // Artifact codec: snappy (default) or none
}

// AvailabilityConfig declares which algorithm families this deployment offers.
// Disabled families are skipped during selection and rejected at training time.
type AvailabilityConfig struct {
	Autoregressive   bool `mapstructure:"autoregressive"`
	SeasonalAdditive bool `mapstructure:"seasonal_additive"`
	Recurrent        bool `mapstructure:"recurrent"`
}

// CacheConfig configures the optional Redis forecast cache
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AggregateConfig bounds the multi-source fan-out
type AggregateConfig struct {
	Workers    int `mapstructure:"workers"`     // Concurrent per-source forecasts
	MaxSources int `mapstructure:"max_sources"` // Upper bound on sources per request
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Extraction.Validate(); err != nil {
		return fmt.Errorf("extraction config: %w", err)
	}

	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}

	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast config: %w", err)
	}

	if err := c.Aggregate.Validate(); err != nil {
		return fmt.Errorf("aggregate config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	return nil
}

// Validate validates extraction configuration
func (c *ExtractionConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("extraction.data_dir is required")
	}

	return nil
}

// Validate validates registry configuration
func (c *RegistryConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("registry.dir is required")
	}

	if c.RetrainingInterval <= 0 {
		return fmt.Errorf("registry.retraining_interval must be positive")
	}

	if c.MaxGrowthFraction < 0 {
		return fmt.Errorf("registry.max_growth_fraction cannot be negative")
	}

	if _, err := compression.ParseAlgorithm(c.Compression); err != nil {
		return fmt.Errorf("registry.compression: %w", err)
	}

	return nil
}

// Validate validates aggregate configuration
func (c *AggregateConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("aggregate.workers must be at least 1")
	}

	if c.MaxSources < 1 {
		return fmt.Errorf("aggregate.max_sources must be at least 1")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}

// Families returns the enabled algorithm families in canonical order
func (c *AvailabilityConfig) Families() []forecast.Family {
	var families []forecast.Family
	if c.Autoregressive {
		families = append(families, forecast.FamilyAutoregressive)
	}
	if c.SeasonalAdditive {
		families = append(families, forecast.FamilySeasonal)
	}
	if c.Recurrent {
		families = append(families, forecast.FamilyRecurrent)
	}
	return families
}
