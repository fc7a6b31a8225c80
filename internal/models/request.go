package models

import (
	"fmt"

	"github.com/terracastio/terracast/internal/utils"
)

// ForecastRequest represents the forecast request body
type ForecastRequest struct {
	Horizon      int    `json:"horizon"`       // number of future steps to predict
	Family       string `json:"family"`        // optional algorithm family override
	ForceRetrain bool   `json:"force_retrain"` // skip stored models and retrain
}

// Validate checks request bounds. A zero horizon is allowed here because
// handlers substitute the default before validating.
func (r *ForecastRequest) Validate() error {
	if r.Horizon < 0 {
		return fmt.Errorf("horizon cannot be negative")
	}
	if r.Horizon > utils.MaxHorizon {
		return fmt.Errorf("horizon cannot exceed %d", utils.MaxHorizon)
	}
	return nil
}

// SeriesSpecBody identifies one (dataset, variable) pair in a batch request
type SeriesSpecBody struct {
	DatasetID    string `json:"dataset_id"`
	VariableName string `json:"variable_name"`
}

// AggregateForecastRequest represents the multi-series forecast request body
type AggregateForecastRequest struct {
	Specs   []SeriesSpecBody `json:"specs"`
	Horizon int              `json:"horizon"`
	Family  string           `json:"family"` // optional, applied to every spec
}

// Validate checks the multi-series request shape
func (r *AggregateForecastRequest) Validate() error {
	if len(r.Specs) == 0 {
		return fmt.Errorf("specs cannot be empty")
	}
	for i, spec := range r.Specs {
		if spec.DatasetID == "" {
			return fmt.Errorf("specs[%d]: dataset_id is required", i)
		}
		if spec.VariableName == "" {
			return fmt.Errorf("specs[%d]: variable_name is required", i)
		}
	}
	if r.Horizon < 0 {
		return fmt.Errorf("horizon cannot be negative")
	}
	if r.Horizon > utils.MaxHorizon {
		return fmt.Errorf("horizon cannot exceed %d", utils.MaxHorizon)
	}
	return nil
}

// RetrainRequest represents the explicit retrain request body
type RetrainRequest struct {
	Family string `json:"family"` // optional algorithm family override
}
