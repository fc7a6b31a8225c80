package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/terracastio/terracast/internal/cache"
	"github.com/terracastio/terracast/internal/extraction"
	"github.com/terracastio/terracast/internal/forecast"
	"github.com/terracastio/terracast/internal/logging"
	"github.com/terracastio/terracast/internal/registry"
	"github.com/terracastio/terracast/internal/timeseries"
)

// ForecastService orchestrates the full forecast path for one dataset
// variable: extract, reuse-or-train under the per-key lock, predict.
type ForecastService struct {
	logger    *logging.Logger
	extractor extraction.Extractor
	selector  *forecast.Selector
	engine    *forecast.Engine
	registry  *registry.Registry
	cache     cache.ForecastCache
}

// NewForecastService creates a new ForecastService
func NewForecastService(
	logger *logging.Logger,
	extractor extraction.Extractor,
	selector *forecast.Selector,
	engine *forecast.Engine,
	reg *registry.Registry,
	forecastCache cache.ForecastCache,
) *ForecastService {
	return &ForecastService{
		logger:    logger,
		extractor: extractor,
		selector:  selector,
		engine:    engine,
		registry:  reg,
		cache:     forecastCache,
	}
}

// ForecastRequest represents a forecast request
type ForecastRequest struct {
	DatasetID    string
	VariableName string
	Horizon      int
	Family       string // optional; empty lets selection decide
	ForceRetrain bool
}

// ForecastResponse represents the complete forecast response
type ForecastResponse struct {
	ForecastID       string             `json:"forecast_id"`
	DatasetID        string             `json:"dataset_id"`
	VariableName     string             `json:"variable_name"`
	Horizon          int                `json:"horizon"`
	Values           []float64          `json:"values"`
	Timestamps       []time.Time        `json:"timestamps"`
	Family           string             `json:"family"`
	Confidence       float64            `json:"confidence"`
	SourceDatasetIDs []string           `json:"source_dataset_ids"`
	TrainedAt        time.Time          `json:"trained_at"`
	TrainingSamples  int                `json:"training_samples"`
	ValidationScore  float64            `json:"validation_score"`
	ReusedModel      bool               `json:"reused_model"`
	Cached           bool               `json:"cached,omitempty"`
	Attempts         []forecast.Attempt `json:"attempts,omitempty"`
}

// ModelSummary describes one stored model for listing endpoints.
type ModelSummary struct {
	DatasetID       string    `json:"dataset_id"`
	VariableName    string    `json:"variable_name"`
	Family          string    `json:"family"`
	TrainedAt       time.Time `json:"trained_at"`
	TrainingSamples int       `json:"training_samples"`
	ValidationScore float64   `json:"validation_score"`
	StoredAt        time.Time `json:"stored_at"`
}

// Execute produces a forecast, reusing a fresh stored model when one exists
// and training otherwise. The per-key lock covers the whole check-train-store
// sequence so concurrent requests for the same variable train at most once.
func (s *ForecastService) Execute(ctx context.Context, req *ForecastRequest) (*ForecastResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	cacheKey := cache.Key{
		DatasetID:    req.DatasetID,
		VariableName: req.VariableName,
		Horizon:      req.Horizon,
		Family:       req.Family,
	}
	if !req.ForceRetrain {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			s.logger.Debug("Forecast served from cache",
				"dataset", req.DatasetID, "variable", req.VariableName, "horizon", req.Horizon)
			return cachedResponse(req, cached), nil
		}
	}

	series, err := s.extractor.Extract(ctx, req.DatasetID, req.VariableName)
	if err != nil {
		if errors.Is(err, extraction.ErrNoData) {
			return nil, NewServiceErrorWithDetails(CodeNoData, err.Error(), map[string]interface{}{
				"dataset_id":    req.DatasetID,
				"variable_name": req.VariableName,
			})
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, NewServiceError(CodeInternal, err.Error())
	}

	key := req.DatasetID + "/" + req.VariableName
	unlock := s.registry.LockKey(key)
	defer unlock()

	record, reused, err := s.obtainModel(ctx, key, req, series)
	if err != nil {
		return nil, err
	}

	fc, err := s.engine.Predict(record.Model, req.Horizon)
	if err != nil {
		return nil, NewServiceError(CodeInternal, err.Error())
	}
	fc.ID = uuid.New().String()

	if err := s.cache.Set(ctx, cacheKey, fc); err != nil {
		// Cache failures never fail the forecast.
		s.logger.Warn("Failed to cache forecast", "key", key, "error", err)
	}

	return &ForecastResponse{
		ForecastID:       fc.ID,
		DatasetID:        req.DatasetID,
		VariableName:     req.VariableName,
		Horizon:          req.Horizon,
		Values:           fc.Values,
		Timestamps:       fc.Timestamps,
		Family:           string(record.Model.Family),
		Confidence:       fc.Confidence,
		SourceDatasetIDs: fc.SourceDatasetIDs,
		TrainedAt:        record.Model.TrainedAt,
		TrainingSamples:  record.Model.TrainingSamples,
		ValidationScore:  record.Model.ValidationScore,
		ReusedModel:      reused,
		Attempts:         record.Attempts,
	}, nil
}

// obtainModel returns a fresh stored record or trains a new one. Must be
// called with the key lock held.
func (s *ForecastService) obtainModel(ctx context.Context, key string, req *ForecastRequest, series *timeseries.Series) (*registry.Record, bool, error) {
	if !req.ForceRetrain {
		record, err := s.registry.GetIfFresh(key, series.Len())
		if err == nil && matchesRequestedFamily(record, req.Family) {
			s.logger.Debug("Reusing stored model", "key", key, "family", string(record.Model.Family))
			return record, true, nil
		}
		var stale *registry.StaleError
		if errors.As(err, &stale) {
			s.logger.Info("Stored model is stale, retraining", "key", key, "reason", stale.Reason)
		}
	}

	candidates, err := s.candidates(req.Family, series)
	if err != nil {
		return nil, false, err
	}

	model, attempts, err := s.engine.TrainWithFallback(ctx, series, candidates)
	if err != nil {
		return nil, false, mapTrainingError(err)
	}

	record := &registry.Record{Model: model, Attempts: attempts}
	if err := s.registry.Put(record); err != nil {
		return nil, false, NewServiceError(CodeInternal, err.Error())
	}
	return record, false, nil
}

// candidates builds the ordered family list for training. A requested family
// goes first; the selector's ranking fills in the fallbacks behind it.
func (s *ForecastService) candidates(requested string, series *timeseries.Series) ([]forecast.Family, error) {
	ranked, err := s.selector.Select(series)
	if err != nil {
		if errors.Is(err, forecast.ErrNoAlgorithmAvailable) {
			return nil, NewServiceError(CodeNoAlgorithm, err.Error())
		}
		return nil, NewServiceError(CodeInternal, err.Error())
	}
	if requested == "" {
		return ranked, nil
	}

	family, err := forecast.ParseFamily(requested)
	if err != nil {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, err.Error(), map[string]interface{}{
			"known_families": forecast.Families(),
		})
	}

	ordered := []forecast.Family{family}
	for _, f := range ranked {
		if f != family {
			ordered = append(ordered, f)
		}
	}
	return ordered, nil
}

// Retrain forces a fresh training run for a dataset variable and invalidates
// any cached forecasts derived from the previous model.
func (s *ForecastService) Retrain(ctx context.Context, datasetID, variableName, family string) (*ModelSummary, error) {
	if datasetID == "" || variableName == "" {
		return nil, NewServiceError(CodeInvalidRequest, "dataset_id and variable_name are required")
	}

	series, err := s.extractor.Extract(ctx, datasetID, variableName)
	if err != nil {
		if errors.Is(err, extraction.ErrNoData) {
			return nil, NewServiceError(CodeNoData, err.Error())
		}
		return nil, NewServiceError(CodeInternal, err.Error())
	}

	key := datasetID + "/" + variableName
	unlock := s.registry.LockKey(key)
	defer unlock()

	req := &ForecastRequest{
		DatasetID:    datasetID,
		VariableName: variableName,
		Family:       family,
		ForceRetrain: true,
	}
	record, _, err := s.obtainModel(ctx, key, req, series)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, datasetID, variableName); err != nil {
		s.logger.Warn("Failed to invalidate forecast cache", "key", key, "error", err)
	}

	summary := summarize(record)
	return &summary, nil
}

// ListModels returns summaries of every stored model.
func (s *ForecastService) ListModels() []ModelSummary {
	records := s.registry.List()
	summaries := make([]ModelSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, summarize(record))
	}
	return summaries
}

// DeleteModel removes a stored model.
func (s *ForecastService) DeleteModel(datasetID, variableName string) error {
	key := datasetID + "/" + variableName
	if err := s.registry.Delete(key); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return NewServiceError(CodeModelNotFound, err.Error())
		}
		return NewServiceError(CodeInternal, err.Error())
	}
	return nil
}

// RegistryStats exposes registry counters for diagnostics.
func (s *ForecastService) RegistryStats() registry.Stats {
	return s.registry.Stats()
}

// CleanupModels removes stored models older than the given age and reports
// how many were deleted.
func (s *ForecastService) CleanupModels(age time.Duration) (int, error) {
	removed, err := s.registry.CleanupOlderThan(age)
	if err != nil {
		return removed, NewServiceError(CodeInternal, err.Error())
	}
	return removed, nil
}

func validateRequest(req *ForecastRequest) error {
	if req.DatasetID == "" || req.VariableName == "" {
		return NewServiceError(CodeInvalidRequest, "dataset_id and variable_name are required")
	}
	if req.Horizon <= 0 {
		return NewServiceError(CodeInvalidRequest, "horizon must be a positive integer")
	}
	return nil
}

func matchesRequestedFamily(record *registry.Record, requested string) bool {
	return requested == "" || string(record.Model.Family) == requested
}

func mapTrainingError(err error) error {
	var allFailed *forecast.AllFailedError
	switch {
	case errors.Is(err, forecast.ErrNoAlgorithmAvailable):
		return NewServiceError(CodeNoAlgorithm, err.Error())
	case errors.As(err, &allFailed):
		details := make(map[string]interface{}, len(allFailed.Attempts))
		for _, attempt := range allFailed.Attempts {
			details[string(attempt.Family)] = attempt.Reason
		}
		return NewServiceErrorWithDetails(CodeAllAlgorithmsFailed, err.Error(), details)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return NewServiceError(CodeTrainingFailed, err.Error())
}

func cachedResponse(req *ForecastRequest, fc *forecast.Forecast) *ForecastResponse {
	return &ForecastResponse{
		ForecastID:       fc.ID,
		DatasetID:        req.DatasetID,
		VariableName:     req.VariableName,
		Horizon:          req.Horizon,
		Values:           fc.Values,
		Timestamps:       fc.Timestamps,
		Family:           string(fc.Family),
		Confidence:       fc.Confidence,
		SourceDatasetIDs: fc.SourceDatasetIDs,
		Cached:           true,
	}
}

func summarize(record *registry.Record) ModelSummary {
	return ModelSummary{
		DatasetID:       record.Model.DatasetID,
		VariableName:    record.Model.VariableName,
		Family:          string(record.Model.Family),
		TrainedAt:       record.Model.TrainedAt,
		TrainingSamples: record.Model.TrainingSamples,
		ValidationScore: record.Model.ValidationScore,
		StoredAt:        record.StoredAt,
	}
}
