// Package handlers exposes the forecasting services over HTTP.
package handlers

import (
	"github.com/terracastio/terracast/internal/logging"
	"github.com/terracastio/terracast/internal/services"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger           *logging.Logger
	forecastService  *services.ForecastService
	aggregateService *services.AggregateService
}

// New creates a new handler instance
func New(logger *logging.Logger, forecasts *services.ForecastService, aggregates *services.AggregateService) *Handler {
	return &Handler{
		logger:           logger,
		forecastService:  forecasts,
		aggregateService: aggregates,
	}
}
