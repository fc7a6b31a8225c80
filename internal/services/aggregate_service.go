package services

import (
	"context"
	"sync"

	"github.com/terracastio/terracast/internal/config"
	"github.com/terracastio/terracast/internal/logging"
)

// AggregateService fans a batch of independent series forecasts out across
// a bounded worker pool. Each spec names its own dataset and variable, so a
// single batch can mix variables from different sources. Per-spec failures
// are reported in place; the aggregate fails only when every spec fails.
type AggregateService struct {
	logger     *logging.Logger
	forecasts  *ForecastService
	workers    int
	maxSources int
}

// NewAggregateService creates a new AggregateService
func NewAggregateService(logger *logging.Logger, forecasts *ForecastService, cfg config.AggregateConfig) *AggregateService {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	maxSources := cfg.MaxSources
	if maxSources < 1 {
		maxSources = 1
	}
	return &AggregateService{
		logger:     logger,
		forecasts:  forecasts,
		workers:    workers,
		maxSources: maxSources,
	}
}

// SeriesSpec identifies one series to forecast within a batch.
type SeriesSpec struct {
	DatasetID    string `json:"dataset_id"`
	VariableName string `json:"variable_name"`
}

// Key returns the registry-style identity of the spec.
func (s SeriesSpec) Key() string {
	return s.DatasetID + "/" + s.VariableName
}

// AggregateRequest represents a multi-series forecast request
type AggregateRequest struct {
	Specs   []SeriesSpec
	Horizon int
	Family  string // optional; applied to every spec
}

// SourceResult holds the outcome for one series spec. Exactly one of
// Forecast and Error is set.
type SourceResult struct {
	DatasetID    string            `json:"dataset_id"`
	VariableName string            `json:"variable_name"`
	Forecast     *ForecastResponse `json:"forecast,omitempty"`
	Error        *ServiceError     `json:"error,omitempty"`
}

// AggregateResponse represents the complete multi-series response.
// SourceDatasetIDs is the combined, order-preserving list of dataset IDs
// that contributed a successful forecast.
type AggregateResponse struct {
	Horizon          int            `json:"horizon"`
	Results          []SourceResult `json:"results"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	SourceDatasetIDs []string       `json:"source_dataset_ids"`
}

// Execute runs per-spec forecasts concurrently, bounded by the worker
// count, and returns results in the order the specs were requested.
func (s *AggregateService) Execute(ctx context.Context, req *AggregateRequest) (*AggregateResponse, error) {
	if len(req.Specs) == 0 {
		return nil, NewServiceError(CodeInvalidRequest, "at least one series spec is required")
	}
	if len(req.Specs) > s.maxSources {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, "too many series specs",
			map[string]interface{}{"max_sources": s.maxSources, "requested": len(req.Specs)})
	}
	for _, spec := range req.Specs {
		if spec.DatasetID == "" || spec.VariableName == "" {
			return nil, NewServiceError(CodeInvalidRequest,
				"every spec needs both dataset_id and variable_name")
		}
	}
	if req.Horizon <= 0 {
		return nil, NewServiceError(CodeInvalidRequest, "horizon must be a positive integer")
	}

	// Deduplicate (dataset, variable) pairs while preserving request order.
	seen := make(map[string]bool, len(req.Specs))
	specs := make([]SeriesSpec, 0, len(req.Specs))
	for _, spec := range req.Specs {
		if seen[spec.Key()] {
			continue
		}
		seen[spec.Key()] = true
		specs = append(specs, spec)
	}

	type indexed struct {
		index int
		spec  SeriesSpec
	}
	jobs := make(chan indexed)
	results := make([]SourceResult, len(specs))

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results[job.index] = s.forecastOne(ctx, job.spec, req)
			}
		}()
	}

	for i, spec := range specs {
		jobs <- indexed{index: i, spec: spec}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	succeeded := 0
	sourceIDs := make([]string, 0, len(results))
	seenSource := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Error != nil {
			continue
		}
		succeeded++
		for _, id := range r.Forecast.SourceDatasetIDs {
			if !seenSource[id] {
				seenSource[id] = true
				sourceIDs = append(sourceIDs, id)
			}
		}
	}
	if succeeded == 0 {
		return nil, NewServiceErrorWithDetails(CodeAllAlgorithmsFailed,
			"all series specs failed", failureDetails(results))
	}

	s.logger.Info("Aggregate forecast completed",
		"specs", len(specs),
		"succeeded", succeeded,
		"failed", len(specs)-succeeded)

	return &AggregateResponse{
		Horizon:          req.Horizon,
		Results:          results,
		Succeeded:        succeeded,
		Failed:           len(specs) - succeeded,
		SourceDatasetIDs: sourceIDs,
	}, nil
}

func (s *AggregateService) forecastOne(ctx context.Context, spec SeriesSpec, req *AggregateRequest) SourceResult {
	result := SourceResult{DatasetID: spec.DatasetID, VariableName: spec.VariableName}

	fc, err := s.forecasts.Execute(ctx, &ForecastRequest{
		DatasetID:    spec.DatasetID,
		VariableName: spec.VariableName,
		Horizon:      req.Horizon,
		Family:       req.Family,
	})
	if err != nil {
		if svcErr, ok := err.(*ServiceError); ok {
			result.Error = svcErr
		} else {
			result.Error = NewServiceError(CodeInternal, err.Error())
		}
		s.logger.Warn("Series forecast failed",
			"dataset", spec.DatasetID,
			"variable", spec.VariableName,
			"code", result.Error.Code,
			"error", result.Error.Message)
		return result
	}

	result.Forecast = fc
	return result
}

func failureDetails(results []SourceResult) map[string]interface{} {
	details := make(map[string]interface{}, len(results))
	for _, r := range results {
		if r.Error != nil {
			details[r.DatasetID+"/"+r.VariableName] = r.Error.Code + ": " + r.Error.Message
		}
	}
	return details
}
