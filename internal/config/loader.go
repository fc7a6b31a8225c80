package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/terracastio/terracast/internal/forecast"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")              // Current directory
		v.AddConfigPath("./configs")      // Project configs directory
		v.AddConfigPath("/etc/terracast") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("TERRACAST")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 6060)

	// Extraction defaults
	v.SetDefault("extraction.data_dir", "./data")

	// Registry defaults
	v.SetDefault("registry.dir", "./models")
	v.SetDefault("registry.retraining_interval", "168h")
	v.SetDefault("registry.max_growth_fraction", 0.20)
	v.SetDefault("registry.compression", "snappy")

	// Forecast defaults
	v.SetDefault("forecast.small_sample_threshold", 10)
	v.SetDefault("forecast.large_sample_threshold", 30)
	v.SetDefault("forecast.periodicity_threshold", 0.5)
	v.SetDefault("forecast.stationarity_alpha", 0.05)
	v.SetDefault("forecast.holdout_fraction", 0.2)
	v.SetDefault("forecast.confidence_decay", 0.5)
	v.SetDefault("forecast.max_p", 2)
	v.SetDefault("forecast.max_d", 1)
	v.SetDefault("forecast.max_q", 2)
	v.SetDefault("forecast.alpha", 0.3)
	v.SetDefault("forecast.beta", 0.1)
	v.SetDefault("forecast.gamma", 0.1)
	v.SetDefault("forecast.window", 10)
	v.SetDefault("forecast.hidden_units", 8)
	v.SetDefault("forecast.epochs", 200)
	v.SetDefault("forecast.learning_rate", 0.05)
	v.SetDefault("forecast.seed", 1)

	// Availability defaults: all families enabled
	v.SetDefault("availability.autoregressive", true)
	v.SetDefault("availability.seasonal_additive", true)
	v.SetDefault("availability.recurrent", true)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", "10m")

	// Aggregate defaults
	v.SetDefault("aggregate.workers", 4)
	v.SetDefault("aggregate.max_sources", 16)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			HTTPPort: 6060,
		},
		Extraction: ExtractionConfig{
			DataDir: "./data",
		},
		Registry: RegistryConfig{
			Dir:                "./models",
			RetrainingInterval: 168 * time.Hour,
			MaxGrowthFraction:  0.20,
			Compression:        "snappy",
		},
		Forecast: forecast.DefaultConfig(),
		Availability: AvailabilityConfig{
			Autoregressive:   true,
			SeasonalAdditive: true,
			Recurrent:        true,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     10 * time.Minute,
		},
		Aggregate: AggregateConfig{
			Workers:    4,
			MaxSources: 16,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
