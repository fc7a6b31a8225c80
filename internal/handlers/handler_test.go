package handlers

import (
	"context"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/terracastio/terracast/internal/cache"
	"github.com/terracastio/terracast/internal/config"
	"github.com/terracastio/terracast/internal/extraction"
	"github.com/terracastio/terracast/internal/forecast"
	"github.com/terracastio/terracast/internal/logging"
	"github.com/terracastio/terracast/internal/middleware"
	"github.com/terracastio/terracast/internal/registry"
	"github.com/terracastio/terracast/internal/services"
	"github.com/terracastio/terracast/internal/timeseries"
)

// stubExtractor serves series from memory, standing in for the file layer.
type stubExtractor struct {
	series map[string]*timeseries.Series
}

func (s *stubExtractor) Extract(ctx context.Context, datasetID, variableName string) (*timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, ok := s.series[datasetID+"/"+variableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", extraction.ErrNoData, datasetID, variableName)
	}
	return found, nil
}

func dailySeries(datasetID, variableName string, values []float64) *timeseries.Series {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		points[i] = timeseries.Point{Time: start.Add(time.Duration(i) * 24 * time.Hour), Value: v}
	}
	return &timeseries.Series{DatasetID: datasetID, VariableName: variableName, Points: points}
}

func trendValues(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = 10 + 0.5*float64(i) + 0.3*math.Sin(float64(i))
	}
	return values
}

// newTestApp wires the full stack behind a Fiber app so handlers are
// exercised exactly as the router mounts them.
func newTestApp(t *testing.T, ex extraction.Extractor) *fiber.App {
	t.Helper()
	logger := logging.NewWithWriter(io.Discard, zerolog.ErrorLevel)

	catalog := forecast.NewCatalog(map[forecast.Family]bool{
		forecast.FamilyAutoregressive: true,
		forecast.FamilySeasonal:       true,
		forecast.FamilyRecurrent:      true,
	})
	fcfg := forecast.DefaultConfig()
	selector := forecast.NewSelector(fcfg, catalog)
	engine := forecast.NewEngine(fcfg, catalog, logger)

	reg, err := registry.Open(config.RegistryConfig{
		Dir:                t.TempDir(),
		RetrainingInterval: 168 * time.Hour,
		MaxGrowthFraction:  0.20,
	}, logger)
	if err != nil {
		t.Fatalf("registry open failed: %v", err)
	}

	forecasts := services.NewForecastService(logger, ex, selector, engine, reg, cache.NopCache{})
	aggregates := services.NewAggregateService(logger, forecasts, config.AggregateConfig{Workers: 2, MaxSources: 8})
	h := New(logger, forecasts, aggregates)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
	})
	app.Get("/health", h.Health)
	app.Get("/v1/datasets/:dataset/variables/:variable/forecast", h.Forecast)
	app.Post("/v1/datasets/:dataset/variables/:variable/forecast", h.ForecastPost)
	app.Post("/v1/forecast/aggregate", h.AggregateForecast)
	app.Get("/v1/models", h.ListModels)
	app.Get("/v1/models/stats", h.GetModelStats)
	app.Delete("/v1/models/:dataset/:variable", h.DeleteModel)
	app.Post("/v1/models/:dataset/:variable/retrain", h.RetrainModel)
	app.Post("/admin/models/cleanup", h.CleanupModels)
	app.Use(h.NotFound)

	return app
}
