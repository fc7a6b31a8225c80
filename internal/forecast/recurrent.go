package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// RecurrentParams holds the fitted state of the sliding-window sequence
// model: a single hidden layer with tanh activation mapping the last Window
// scaled observations to the next one, plus the min-max scaler bounds and the
// final observed window needed to roll predictions forward.
type RecurrentParams struct {
	Window int `json:"window"`
	Hidden int `json:"hidden"`

	WIn  [][]float64 `json:"w_in"`  // hidden x window
	BIn  []float64   `json:"b_in"`  // hidden
	WOut []float64   `json:"w_out"` // hidden
	BOut float64     `json:"b_out"`
	Min  float64     `json:"min"`
	Max  float64     `json:"max"`

	LastWindow []float64 `json:"last_window"` // scaled
}

const recurrentMinSamples = 30

// fitRecurrent trains the sequence model with stochastic gradient descent
// over cfg.Epochs passes. Weight initialization is seeded from cfg.Seed so
// training is deterministic. This is the only family whose cost scales with
// the epoch count rather than a one-shot fit; ctx is checked between epochs
// so cancellation abandons training promptly.
func fitRecurrent(ctx context.Context, values []float64, cfg Config) (*RecurrentParams, error) {
	n := len(values)
	if n < recurrentMinSamples {
		return nil, fmt.Errorf("need at least %d observations, got %d", recurrentMinSamples, n)
	}

	window := cfg.Window
	if window < 2 {
		window = 10
	}
	if window > n/3 {
		window = n / 3
	}
	hidden := cfg.HiddenUnits
	if hidden < 1 {
		hidden = 8
	}
	lr := cfg.LearningRate
	if lr <= 0 {
		lr = 0.05
	}

	lo, hi := minMax(values)
	if hi == lo {
		hi = lo + 1
	}
	scaled := make([]float64, n)
	for i, v := range values {
		scaled[i] = (v - lo) / (hi - lo)
	}

	// Sliding-window training pairs: scaled[i-window:i] predicts scaled[i].
	type sample struct {
		x []float64
		y float64
	}
	samples := make([]sample, 0, n-window)
	for i := window; i < n; i++ {
		samples = append(samples, sample{x: scaled[i-window : i], y: scaled[i]})
	}
	if len(samples) < 5 {
		return nil, fmt.Errorf("insufficient windows for training: %d", len(samples))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	wIn := make([][]float64, hidden)
	bIn := make([]float64, hidden)
	wOut := make([]float64, hidden)
	for h := 0; h < hidden; h++ {
		wIn[h] = make([]float64, window)
		for j := 0; j < window; j++ {
			wIn[h][j] = (rng.Float64() - 0.5) * 0.2
		}
		wOut[h] = (rng.Float64() - 0.5) * 0.2
	}
	bOut := 0.0

	hiddenAct := make([]float64, hidden)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, s := range samples {
			// Forward pass.
			for h := 0; h < hidden; h++ {
				sum := bIn[h]
				for j := 0; j < window; j++ {
					sum += wIn[h][j] * s.x[j]
				}
				hiddenAct[h] = math.Tanh(sum)
			}
			out := bOut
			for h := 0; h < hidden; h++ {
				out += wOut[h] * hiddenAct[h]
			}

			// Backward pass (squared error).
			errOut := out - s.y
			bOut -= lr * errOut
			for h := 0; h < hidden; h++ {
				gradOut := errOut * hiddenAct[h]
				gradHidden := errOut * wOut[h] * (1 - hiddenAct[h]*hiddenAct[h])
				wOut[h] -= lr * gradOut
				bIn[h] -= lr * gradHidden
				for j := 0; j < window; j++ {
					wIn[h][j] -= lr * gradHidden * s.x[j]
				}
			}
		}
	}

	return &RecurrentParams{
		Window:     window,
		Hidden:     hidden,
		WIn:        wIn,
		BIn:        bIn,
		WOut:       wOut,
		BOut:       bOut,
		Min:        lo,
		Max:        hi,
		LastWindow: append([]float64(nil), scaled[n-window:]...),
	}, nil
}

// forecastRecurrent rolls the network forward, feeding each prediction back
// into the window.
func forecastRecurrent(params *RecurrentParams, steps int) []float64 {
	windowVals := append([]float64(nil), params.LastWindow...)
	out := make([]float64, steps)

	for i := 0; i < steps; i++ {
		pred := params.BOut
		for h := 0; h < params.Hidden; h++ {
			sum := params.BIn[h]
			for j := 0; j < params.Window; j++ {
				sum += params.WIn[h][j] * windowVals[len(windowVals)-params.Window+j]
			}
			pred += params.WOut[h] * math.Tanh(sum)
		}
		windowVals = append(windowVals, pred)
		out[i] = pred*(params.Max-params.Min) + params.Min
	}
	return out
}

func minMax(values []float64) (lo, hi float64) {
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
