package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/terracastio/terracast/internal/cache"
	"github.com/terracastio/terracast/internal/config"
	"github.com/terracastio/terracast/internal/extraction"
	"github.com/terracastio/terracast/internal/forecast"
	"github.com/terracastio/terracast/internal/logging"
	"github.com/terracastio/terracast/internal/registry"
	"github.com/terracastio/terracast/internal/router"
	"github.com/terracastio/terracast/internal/services"
	"github.com/terracastio/terracast/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Terracast starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("Failed to create data directories", "error", err)
	}

	// Algorithm catalog from deployment availability
	available := make(map[forecast.Family]bool)
	for _, family := range cfg.Availability.Families() {
		available[family] = true
	}
	catalog := forecast.NewCatalog(available)
	logger.Info("Algorithm families available", "families", catalog.List())

	selector := forecast.NewSelector(cfg.Forecast, catalog)
	engine := forecast.NewEngine(cfg.Forecast, catalog, logger)

	// Model registry
	reg, err := registry.Open(cfg.Registry, logger)
	if err != nil {
		logger.Fatal("Failed to open model registry", "error", err, "dir", cfg.Registry.Dir)
	}
	logger.Info("Model registry opened", "dir", cfg.Registry.Dir, "entries", reg.Stats().Entries)

	// Optional Redis forecast cache
	forecastCache, err := cache.New(cfg.Cache, logger)
	if err != nil {
		logger.Fatal("Failed to connect to forecast cache", "error", err, "addr", cfg.Cache.Addr)
	}
	defer func() { _ = forecastCache.Close() }()

	// Extraction and services
	extractor := extraction.NewFileExtractor(cfg.Extraction, logger)
	forecasts := services.NewForecastService(logger, extractor, selector, engine, reg, forecastCache)
	aggregates := services.NewAggregateService(logger, forecasts, cfg.Aggregate)

	// Initialize router
	app := router.New(logger, forecasts, aggregates, *cfg)

	// Start server in goroutine
	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
