package forecast

import (
	"fmt"
	"math"

	"github.com/terracastio/terracast/internal/timeseries"
)

// SeasonalParams holds the fitted state of an additive level + trend +
// seasonal model: the final smoothed components and the last full cycle of
// seasonal offsets, ordered so Seasonal[(h-1) % Period] is the offset for
// forecast step h.
type SeasonalParams struct {
	Level    float64   `json:"level"`
	Trend    float64   `json:"trend"`
	Seasonal []float64 `json:"seasonal"`
	Period   int       `json:"period"`

	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

const seasonalMinSamples = 10

// fitSeasonal fits an additive triple-smoothing model. Missing values are
// tolerated: they are linearly interpolated before fitting, which is the one
// family where the engine fills gaps instead of requiring a clean series.
func fitSeasonal(values []float64, cfg Config) (*SeasonalParams, error) {
	values = interpolateMissing(values)
	n := len(values)
	if n < seasonalMinSamples {
		return nil, fmt.Errorf("need at least %d observations for a reliable seasonal estimate, got %d", seasonalMinSamples, n)
	}

	alpha := clampSmoothing(cfg.Alpha, 0.3)
	beta := clampSmoothing(cfg.Beta, 0.1)
	gamma := clampSmoothing(cfg.Gamma, 0.1)

	period := cfg.SeasonalPeriod
	if period <= 1 {
		detected, ok := timeseries.DetectPeriod(values, n/2, cfg.PeriodicityThreshold)
		if !ok {
			return nil, fmt.Errorf("no seasonal period detected above autocorrelation %.2f", cfg.PeriodicityThreshold)
		}
		period = detected
	}
	if n < period*2 {
		return nil, fmt.Errorf("need at least two full cycles of period %d, got %d observations", period, n)
	}

	// Initial level: mean of the first cycle. Initial trend: average change
	// across one cycle. Initial seasonal offsets: deviation from the level.
	level := 0.0
	for i := 0; i < period; i++ {
		level += values[i]
	}
	level /= float64(period)

	trend := (values[period] - values[0]) / float64(period)

	seasonal := make([]float64, period)
	for i := 0; i < period; i++ {
		seasonal[i] = values[i] - level
	}

	for t := period; t < n; t++ {
		idx := t % period
		prevLevel := level
		prevSeasonal := seasonal[idx]

		level = alpha*(values[t]-prevSeasonal) + (1-alpha)*(prevLevel+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		seasonal[idx] = gamma*(values[t]-level) + (1-gamma)*prevSeasonal
	}

	// Reorder so index 0 is the offset for the first forecast step.
	ordered := make([]float64, period)
	for h := 0; h < period; h++ {
		ordered[h] = seasonal[(n+h)%period]
	}

	return &SeasonalParams{
		Level:    level,
		Trend:    trend,
		Seasonal: ordered,
		Period:   period,
		Alpha:    alpha,
		Beta:     beta,
		Gamma:    gamma,
	}, nil
}

// forecastSeasonal extrapolates the fitted components.
func forecastSeasonal(params *SeasonalParams, steps int) []float64 {
	out := make([]float64, steps)
	for h := 0; h < steps; h++ {
		out[h] = params.Level + float64(h+1)*params.Trend + params.Seasonal[h%params.Period]
	}
	return out
}

// interpolateMissing replaces NaN values with linear interpolation between
// the nearest observed neighbors; leading/trailing NaN runs take the nearest
// observed value.
func interpolateMissing(values []float64) []float64 {
	out := append([]float64(nil), values...)
	n := len(out)

	prev := -1
	for i := 0; i < n; i++ {
		if !math.IsNaN(out[i]) {
			prev = i
			continue
		}
		next := -1
		for j := i + 1; j < n; j++ {
			if !math.IsNaN(out[j]) {
				next = j
				break
			}
		}
		switch {
		case prev >= 0 && next >= 0:
			frac := float64(i-prev) / float64(next-prev)
			out[i] = out[prev] + frac*(out[next]-out[prev])
		case prev >= 0:
			out[i] = out[prev]
		case next >= 0:
			out[i] = out[next]
		default:
			out[i] = 0
		}
	}
	return out
}

func clampSmoothing(v, fallback float64) float64 {
	if v <= 0 || v > 1 {
		return fallback
	}
	return v
}
