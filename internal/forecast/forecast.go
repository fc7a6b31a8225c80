// Package forecast implements the forecasting core: the algorithm families
// (autoregressive, additive seasonal-trend, recurrent), the selector that
// ranks them for a given series, and the engine that trains models with
// ordered fallback and produces deterministic predictions from them.
package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/terracastio/terracast/internal/timeseries"
)

// Family identifies one of the supported forecasting algorithm families.
type Family string

const (
	// FamilyAutoregressive fits differencing + AR + MA parameters chosen by
	// information criterion over a small order grid.
	FamilyAutoregressive Family = "autoregressive"
	// FamilySeasonal fits additive level + trend + seasonal components.
	FamilySeasonal Family = "seasonal_additive"
	// FamilyRecurrent fits a sequence model over a sliding window, trained
	// iteratively over a configurable epoch count.
	FamilyRecurrent Family = "recurrent"
)

// Families returns all families in canonical order.
func Families() []Family {
	return []Family{FamilyAutoregressive, FamilySeasonal, FamilyRecurrent}
}

// ParseFamily converts a string to a Family.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case FamilyAutoregressive:
		return FamilyAutoregressive, nil
	case FamilySeasonal:
		return FamilySeasonal, nil
	case FamilyRecurrent:
		return FamilyRecurrent, nil
	}
	return "", fmt.Errorf("unknown algorithm family: %q", s)
}

// Capabilities describes what a family can handle.
type Capabilities struct {
	MinSamples        int
	ModelsSeasonality bool
	ToleratesMissing  bool
}

// Capabilities returns the capability profile for the family.
func (f Family) Capabilities() Capabilities {
	switch f {
	case FamilySeasonal:
		return Capabilities{MinSamples: 10, ModelsSeasonality: true, ToleratesMissing: true}
	case FamilyRecurrent:
		return Capabilities{MinSamples: 30}
	default:
		return Capabilities{MinSamples: 3}
	}
}

// Catalog answers availability queries for algorithm families. It is built
// once from deployment configuration and injected wherever availability
// matters, so the selector stays pure and testable.
type Catalog struct {
	available map[Family]bool
}

// NewCatalog creates a catalog from per-family availability flags. Families
// absent from the map are unavailable.
func NewCatalog(available map[Family]bool) *Catalog {
	m := make(map[Family]bool, len(available))
	for f, ok := range available {
		m[f] = ok
	}
	return &Catalog{available: m}
}

// Available reports whether the family's runtime dependency is present in
// this deployment.
func (c *Catalog) Available(f Family) bool {
	return c.available[f]
}

// Any reports whether at least one family is available.
func (c *Catalog) Any() bool {
	for _, f := range Families() {
		if c.available[f] {
			return true
		}
	}
	return false
}

// List returns the available families in canonical order.
func (c *Catalog) List() []Family {
	var out []Family
	for _, f := range Families() {
		if c.available[f] {
			out = append(out, f)
		}
	}
	return out
}

// TrainedModel holds the fitted parameter set for exactly one
// (dataset, variable, family) triple, along with the metadata the registry
// needs for freshness decisions. Exactly one of the per-family parameter
// fields is non-nil, matching Family.
type TrainedModel struct {
	DatasetID       string         `json:"dataset_id"`
	VariableName    string         `json:"variable_name"`
	Family          Family         `json:"family"`
	TrainedAt       time.Time      `json:"trained_at"`
	TrainingSamples int            `json:"training_samples"`
	ValidationScore float64        `json:"validation_score"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`

	// Prediction cadence, inferred from the training series.
	Interval     time.Duration `json:"interval"`
	LastObserved time.Time     `json:"last_observed"`

	AR        *ARParams        `json:"ar,omitempty"`
	Seasonal  *SeasonalParams  `json:"seasonal,omitempty"`
	Recurrent *RecurrentParams `json:"recurrent,omitempty"`
}

// Key returns the registry key for this model.
func (m *TrainedModel) Key() string {
	return m.DatasetID + "/" + m.VariableName
}

// Forecast is an immutable prediction result: exactly horizon values with
// matching timestamps, the family that produced them, and a confidence score
// combining validation quality and horizon decay.
type Forecast struct {
	ID               string      `json:"forecast_id,omitempty"`
	Values           []float64   `json:"predicted_values"`
	Timestamps       []time.Time `json:"timestamps"`
	Family           Family      `json:"algorithm_used"`
	Confidence       float64     `json:"confidence"`
	SourceDatasetIDs []string    `json:"source_dataset_ids"`
}

// Attempt records one failed training attempt in the fallback chain.
type Attempt struct {
	Family Family `json:"family"`
	Reason string `json:"reason"`
}

// ErrNoAlgorithmAvailable is returned when no family is available in this
// deployment at all.
var ErrNoAlgorithmAvailable = errors.New("no forecasting algorithm family available")

// TrainingError reports that one specific family failed to fit. It is
// recovered by the fallback loop and only surfaced when the failed family was
// the last candidate.
type TrainingError struct {
	Family Family
	Reason string
	Err    error
}

func (e *TrainingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("training %s failed: %s: %v", e.Family, e.Reason, e.Err)
	}
	return fmt.Sprintf("training %s failed: %s", e.Family, e.Reason)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// AllFailedError reports that every candidate in the fallback chain failed,
// with the per-family reasons attached for diagnosability.
type AllFailedError struct {
	Attempts []Attempt
}

func (e *AllFailedError) Error() string {
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = fmt.Sprintf("%s: %s", a.Family, a.Reason)
	}
	return "all algorithm families failed: " + strings.Join(reasons, "; ")
}

// Config holds the forecasting tuning knobs. Detection thresholds are
// configuration, not literals; DefaultConfig documents the defaults.
type Config struct {
	// Selector thresholds.
	SmallSampleThreshold int     `mapstructure:"small_sample_threshold"`
	LargeSampleThreshold int     `mapstructure:"large_sample_threshold"`
	PeriodicityThreshold float64 `mapstructure:"periodicity_threshold"`
	MaxPeriodLag         int     `mapstructure:"max_period_lag"`
	StationarityAlpha    float64 `mapstructure:"stationarity_alpha"`

	// Validation and confidence.
	HoldoutFraction float64 `mapstructure:"holdout_fraction"`
	ConfidenceDecay float64 `mapstructure:"confidence_decay"`

	// Autoregressive order grid.
	MaxP int `mapstructure:"max_p"`
	MaxD int `mapstructure:"max_d"`
	MaxQ int `mapstructure:"max_q"`

	// Seasonal smoothing factors. SeasonalPeriod 0 means auto-detect.
	Alpha          float64 `mapstructure:"alpha"`
	Beta           float64 `mapstructure:"beta"`
	Gamma          float64 `mapstructure:"gamma"`
	SeasonalPeriod int     `mapstructure:"seasonal_period"`

	// Recurrent network shape and training schedule.
	Window       int     `mapstructure:"window"`
	HiddenUnits  int     `mapstructure:"hidden_units"`
	Epochs       int     `mapstructure:"epochs"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Seed         int64   `mapstructure:"seed"`
}

// DefaultConfig returns the default forecasting configuration.
func DefaultConfig() Config {
	return Config{
		SmallSampleThreshold: 10,
		LargeSampleThreshold: 30,
		PeriodicityThreshold: 0.5,
		MaxPeriodLag:         0, // derive from series length
		StationarityAlpha:    timeseries.DefaultStationarityAlpha,
		HoldoutFraction:      0.2,
		ConfidenceDecay:      0.5,
		MaxP:                 2,
		MaxD:                 1,
		MaxQ:                 2,
		Alpha:                0.3,
		Beta:                 0.1,
		Gamma:                0.1,
		SeasonalPeriod:       0, // auto-detect
		Window:               10,
		HiddenUnits:          8,
		Epochs:               200,
		LearningRate:         0.05,
		Seed:                 1,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.SmallSampleThreshold <= 0 {
		return fmt.Errorf("small_sample_threshold must be positive")
	}
	if c.LargeSampleThreshold < c.SmallSampleThreshold {
		return fmt.Errorf("large_sample_threshold must be >= small_sample_threshold")
	}
	if c.PeriodicityThreshold <= 0 || c.PeriodicityThreshold >= 1 {
		return fmt.Errorf("periodicity_threshold must be in (0, 1)")
	}
	if c.StationarityAlpha <= 0 || c.StationarityAlpha >= 1 {
		return fmt.Errorf("stationarity_alpha must be in (0, 1)")
	}
	if c.HoldoutFraction < 0 || c.HoldoutFraction >= 0.5 {
		return fmt.Errorf("holdout_fraction must be in [0, 0.5)")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}
	if c.Window < 2 {
		return fmt.Errorf("window must be at least 2")
	}
	return nil
}
