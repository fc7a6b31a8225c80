package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terracastio/terracast/internal/utils"
)

func TestForecastRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		horizon int
		wantErr bool
	}{
		{
			name:    "zero horizon passes, defaults apply later",
			horizon: 0,
			wantErr: false,
		},
		{
			name:    "positive horizon",
			horizon: 24,
			wantErr: false,
		},
		{
			name:    "horizon at cap",
			horizon: utils.MaxHorizon,
			wantErr: false,
		},
		{
			name:    "negative horizon",
			horizon: -1,
			wantErr: true,
		},
		{
			name:    "horizon above cap",
			horizon: utils.MaxHorizon + 1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ForecastRequest{Horizon: tt.horizon}
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAggregateForecastRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     AggregateForecastRequest
		wantErr string
	}{
		{
			name: "valid request mixing variables",
			req: AggregateForecastRequest{
				Specs: []SeriesSpecBody{
					{DatasetID: "landsat-8", VariableName: "surface_temp"},
					{DatasetID: "goes-16", VariableName: "cloud_fraction"},
				},
				Horizon: 24,
			},
		},
		{
			name: "empty specs",
			req: AggregateForecastRequest{
				Horizon: 24,
			},
			wantErr: "specs cannot be empty",
		},
		{
			name: "missing variable name",
			req: AggregateForecastRequest{
				Specs: []SeriesSpecBody{
					{DatasetID: "landsat-8", VariableName: "surface_temp"},
					{DatasetID: "goes-16"},
				},
				Horizon: 24,
			},
			wantErr: "specs[1]: variable_name is required",
		},
		{
			name: "missing dataset id",
			req: AggregateForecastRequest{
				Specs: []SeriesSpecBody{
					{VariableName: "surface_temp"},
				},
				Horizon: 24,
			},
			wantErr: "specs[0]: dataset_id is required",
		},
		{
			name: "negative horizon",
			req: AggregateForecastRequest{
				Specs: []SeriesSpecBody{
					{DatasetID: "landsat-8", VariableName: "surface_temp"},
				},
				Horizon: -5,
			},
			wantErr: "horizon cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
