package forecast

import (
	"math"
	"testing"
)

func TestFitSeasonalRecoversPeriod(t *testing.T) {
	values := periodic(6, 7)
	params, err := fitSeasonal(values, DefaultConfig())
	if err != nil {
		t.Fatalf("fitSeasonal failed: %v", err)
	}
	if params.Period != 7 {
		t.Errorf("expected detected period 7, got %d", params.Period)
	}
	if len(params.Seasonal) != 7 {
		t.Errorf("expected 7 seasonal offsets, got %d", len(params.Seasonal))
	}
}

func TestFitSeasonalExplicitPeriod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeasonalPeriod = 12
	values := periodic(4, 12)

	params, err := fitSeasonal(values, cfg)
	if err != nil {
		t.Fatalf("fitSeasonal failed: %v", err)
	}
	if params.Period != 12 {
		t.Errorf("configured period should win, got %d", params.Period)
	}
}

func TestFitSeasonalTooShort(t *testing.T) {
	if _, err := fitSeasonal(periodic(1, 5), DefaultConfig()); err == nil {
		t.Error("expected error for fewer than two full cycles")
	}
	if _, err := fitSeasonal([]float64{1, 2, 3}, DefaultConfig()); err == nil {
		t.Error("expected error below the minimum sample count")
	}
}

func TestFitSeasonalNoPeriodicity(t *testing.T) {
	// Equidistributed pseudo-noise has no autocorrelation peak, so period
	// detection must decline rather than invent a cycle.
	values := make([]float64, 40)
	for i := range values {
		x := float64(i) * 0.6180339887
		values[i] = 10 * (x - math.Floor(x))
	}

	if _, err := fitSeasonal(values, DefaultConfig()); err == nil {
		t.Error("expected fitSeasonal to decline a non-periodic series")
	}
}

func TestForecastSeasonalContinuesPattern(t *testing.T) {
	// Strict sawtooth with period 4.
	pattern := []float64{10, 20, 30, 40}
	values := make([]float64, 0, 40)
	for c := 0; c < 10; c++ {
		values = append(values, pattern...)
	}

	cfg := DefaultConfig()
	cfg.SeasonalPeriod = 4
	params, err := fitSeasonal(values, cfg)
	if err != nil {
		t.Fatalf("fitSeasonal failed: %v", err)
	}

	out := forecastSeasonal(params, 8)
	if len(out) != 8 {
		t.Fatalf("expected 8 predictions, got %d", len(out))
	}

	// The forecast continues the cycle: step h repeats step h+4.
	for h := 0; h < 4; h++ {
		cyclic := out[h+4] - out[h]
		trendDrift := 4 * params.Trend
		if math.Abs(cyclic-trendDrift) > 1e-9 {
			t.Errorf("step %d does not repeat the cycle: %v vs %v (trend %v)", h, out[h], out[h+4], params.Trend)
		}
	}

	// First prediction should continue the sawtooth near the pattern start.
	if math.Abs(out[0]-10) > 8 {
		t.Errorf("first prediction far from the repeating pattern: %v", out[0])
	}
}

func TestInterpolateMissing(t *testing.T) {
	values := []float64{1, math.NaN(), 3, math.NaN(), math.NaN(), 9}
	out := interpolateMissing(values)

	want := []float64{1, 2, 3, 5, 7, 9}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("index %d: got %v, want %v", i, out[i], want[i])
		}
	}

	// Edges take the nearest observed value.
	edges := interpolateMissing([]float64{math.NaN(), 5, math.NaN()})
	if edges[0] != 5 || edges[2] != 5 {
		t.Errorf("edge fill wrong: %v", edges)
	}

	// Input is not mutated.
	if !math.IsNaN(values[1]) {
		t.Error("interpolateMissing must not mutate its input")
	}
}
