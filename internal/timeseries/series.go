// Package timeseries provides the core time-series data model shared by the
// extraction, forecasting and registry layers: an ordered sequence of
// (timestamp, value) observations for one variable of one dataset.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Point represents a single observation. A point whose value is NaN must be
// explicitly marked Missing; unmarked NaN values fail validation.
type Point struct {
	Time    time.Time `json:"time"`
	Value   float64   `json:"value"`
	Missing bool      `json:"missing,omitempty"`
}

// Series is an ordered sequence of observations for one variable of one
// dataset. Timestamps are unique and non-decreasing. The forecasting core
// never mutates a Series it receives.
type Series struct {
	DatasetID    string  `json:"dataset_id"`
	VariableName string  `json:"variable_name"`
	Unit         string  `json:"unit,omitempty"`
	Points       []Point `json:"points"`
}

// New creates a Series from parallel timestamp/value slices.
func New(datasetID, variableName string, times []time.Time, values []float64) (*Series, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("timestamps and values must have the same length: %d != %d", len(times), len(values))
	}
	points := make([]Point, len(values))
	for i := range values {
		points[i] = Point{Time: times[i], Value: values[i]}
	}
	s := &Series{DatasetID: datasetID, VariableName: variableName, Points: points}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the series invariants: length >= 1, strictly increasing
// timestamps, and no unmarked NaN values.
func (s *Series) Validate() error {
	if len(s.Points) == 0 {
		return fmt.Errorf("series %s/%s has no observations", s.DatasetID, s.VariableName)
	}
	for i, p := range s.Points {
		if math.IsNaN(p.Value) && !p.Missing {
			return fmt.Errorf("series %s/%s: NaN value at index %d not marked missing", s.DatasetID, s.VariableName, i)
		}
		if i > 0 && !p.Time.After(s.Points[i-1].Time) {
			return fmt.Errorf("series %s/%s: timestamps not strictly increasing at index %d", s.DatasetID, s.VariableName, i)
		}
	}
	return nil
}

// Len returns the number of observations, including missing ones.
func (s *Series) Len() int {
	return len(s.Points)
}

// Values extracts the observed values in order. Missing points appear as NaN.
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		if p.Missing {
			values[i] = math.NaN()
		} else {
			values[i] = p.Value
		}
	}
	return values
}

// Times extracts the observation timestamps in order.
func (s *Series) Times() []time.Time {
	times := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		times[i] = p.Time
	}
	return times
}

// Last returns the final observation.
func (s *Series) Last() Point {
	return s.Points[len(s.Points)-1]
}

// Clone returns a deep copy of the series.
func (s *Series) Clone() *Series {
	points := make([]Point, len(s.Points))
	copy(points, s.Points)
	return &Series{
		DatasetID:    s.DatasetID,
		VariableName: s.VariableName,
		Unit:         s.Unit,
		Points:       points,
	}
}

// Clean returns a copy with missing observations removed. Dropping missing
// values is always the caller's decision, never done implicitly by the core.
func (s *Series) Clean() *Series {
	points := make([]Point, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Missing || math.IsNaN(p.Value) {
			continue
		}
		points = append(points, p)
	}
	return &Series{
		DatasetID:    s.DatasetID,
		VariableName: s.VariableName,
		Unit:         s.Unit,
		Points:       points,
	}
}

// MissingCount returns the number of observations marked missing.
func (s *Series) MissingCount() int {
	n := 0
	for _, p := range s.Points {
		if p.Missing {
			n++
		}
	}
	return n
}

// MedianInterval returns the median spacing between consecutive observations.
// Prediction timestamps continue from the last observation at this cadence.
// Returns 0 for a single-point series.
func (s *Series) MedianInterval() time.Duration {
	if len(s.Points) < 2 {
		return 0
	}
	intervals := make([]time.Duration, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		intervals[i-1] = s.Points[i].Time.Sub(s.Points[i-1].Time)
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i] < intervals[j] })
	return intervals[len(intervals)/2]
}

// Gaps returns the indices after which the spacing to the next observation
// exceeds tolerance times the median interval. Gaps are detectable but never
// filled by the core.
func (s *Series) Gaps(tolerance float64) []int {
	median := s.MedianInterval()
	if median <= 0 || tolerance <= 0 {
		return nil
	}
	var gaps []int
	limit := time.Duration(float64(median) * tolerance)
	for i := 1; i < len(s.Points); i++ {
		if s.Points[i].Time.Sub(s.Points[i-1].Time) > limit {
			gaps = append(gaps, i-1)
		}
	}
	return gaps
}

// Span returns the duration covered by the series.
func (s *Series) Span() time.Duration {
	if len(s.Points) < 2 {
		return 0
	}
	return s.Points[len(s.Points)-1].Time.Sub(s.Points[0].Time)
}
