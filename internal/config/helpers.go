package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/terracastio/terracast/internal/logging"
)

// EnsureDirectories ensures all required directories exist
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Extraction.DataDir,
		c.Registry.Dir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// GetDataPath returns the full path for a dataset variable file
func (c *Config) GetDataPath(datasetID, variableName string) string {
	return filepath.Join(c.Extraction.DataDir, datasetID, variableName+".csv")
}

// GetServerAddress returns the HTTP server bind address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}

// LoggerConfig maps the logging section onto the logging package's config
func (c *LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		OutputPath: c.OutputPath,
		TimeFormat: c.TimeFormat,
	}
}
