// Package router wires the HTTP surface: middlewares, routes and handlers.
package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/terracastio/terracast/internal/config"
	"github.com/terracastio/terracast/internal/handlers"
	"github.com/terracastio/terracast/internal/logging"
	"github.com/terracastio/terracast/internal/middleware"
	"github.com/terracastio/terracast/internal/services"
	"github.com/terracastio/terracast/internal/utils"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, forecasts *services.ForecastService,
	aggregates *services.AggregateService, cfg config.Config,
) *handlers.Handler {
	h := handlers.New(logger, forecasts, aggregates)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check
	app.Get("/health", h.Health)

	// API v1 routes
	v1 := app.Group("/v1")

	// Forecast Routes
	v1.Get("/datasets/:dataset/variables/:variable/forecast", h.Forecast)
	v1.Post("/datasets/:dataset/variables/:variable/forecast", h.ForecastPost)
	v1.Post("/forecast/aggregate", h.AggregateForecast)

	// Model Registry Routes
	v1.Get("/models", h.ListModels)
	v1.Get("/models/stats", h.GetModelStats)
	v1.Delete("/models/:dataset/:variable", h.DeleteModel)
	v1.Post("/models/:dataset/:variable/retrain", h.RetrainModel)

	// Admin Routes
	admin := app.Group("/admin")
	admin.Post("/models/cleanup", h.CleanupModels)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, forecasts *services.ForecastService,
	aggregates *services.AggregateService, cfg config.Config,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Terracast",
		DisableStartupMessage: true,
		ReadTimeout:           utils.DefaultRequestTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, forecasts, aggregates, cfg)

	return app
}
