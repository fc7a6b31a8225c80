// Package extraction reads observation series for a dataset variable from
// the configured data root. It is the boundary between stored satellite
// measurements and the forecasting pipeline.
package extraction

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/terracastio/terracast/internal/config"
	"github.com/terracastio/terracast/internal/logging"
	"github.com/terracastio/terracast/internal/timeseries"
)

// ErrNoData is returned when a dataset variable has no stored observations.
var ErrNoData = errors.New("no observation data available")

// Extractor produces the observation series for a dataset variable.
type Extractor interface {
	Extract(ctx context.Context, datasetID, variableName string) (*timeseries.Series, error)
}

// FileExtractor reads series from per-dataset CSV files laid out as
// <data_dir>/<dataset>/<variable>.csv with "timestamp,value" rows. An empty
// value field marks a missing observation.
type FileExtractor struct {
	dataDir string
	logger  *logging.Logger
}

// NewFileExtractor creates a file-backed extractor.
func NewFileExtractor(cfg config.ExtractionConfig, logger *logging.Logger) *FileExtractor {
	return &FileExtractor{dataDir: cfg.DataDir, logger: logger}
}

// Extract loads and validates the series for a dataset variable. A missing
// file or an empty file yields ErrNoData.
func (e *FileExtractor) Extract(ctx context.Context, datasetID, variableName string) (*timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(e.dataDir, filepath.Clean(datasetID), filepath.Clean(variableName)+".csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNoData, datasetID, variableName)
		}
		return nil, fmt.Errorf("failed to open observation file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse observation file %s: %w", filepath.Base(path), err)
	}

	series := &timeseries.Series{DatasetID: datasetID, VariableName: variableName}
	for i, row := range records {
		// Tolerate a header row.
		if i == 0 && strings.EqualFold(row[0], "timestamp") {
			continue
		}

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("bad timestamp on line %d of %s: %w", i+1, filepath.Base(path), err)
		}

		point := timeseries.Point{Time: ts}
		raw := strings.TrimSpace(row[1])
		if raw == "" {
			point.Missing = true
			point.Value = math.NaN()
		} else {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("bad value on line %d of %s: %w", i+1, filepath.Base(path), err)
			}
			if math.IsNaN(value) {
				point.Missing = true
			}
			point.Value = value
		}
		series.Points = append(series.Points, point)
	}

	if len(series.Points) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoData, datasetID, variableName)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observation series %s/%s: %w", datasetID, variableName, err)
	}

	e.logger.Debug("Series extracted",
		"dataset", datasetID,
		"variable", variableName,
		"points", series.Len(),
		"missing", series.MissingCount())
	return series, nil
}
