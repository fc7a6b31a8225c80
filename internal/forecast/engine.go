package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/terracastio/terracast/internal/logging"
	"github.com/terracastio/terracast/internal/timeseries"
)

// Engine provides the uniform train/predict interface over the algorithm
// families and owns the fallback protocol. Training is synchronous and
// CPU-bound; prediction is deterministic given a trained model and horizon.
type Engine struct {
	cfg     Config
	catalog *Catalog
	logger  *logging.Logger
}

// NewEngine creates a forecasting engine.
func NewEngine(cfg Config, catalog *Catalog, logger *logging.Logger) *Engine {
	return &Engine{cfg: cfg, catalog: catalog, logger: logger}
}

// Catalog exposes the engine's availability catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Train fits a model of the given family on the series. The validation score
// comes from a held-out tail split; the final parameters are fitted on the
// full series. Failures are reported as *TrainingError so the fallback loop
// can advance.
func (e *Engine) Train(ctx context.Context, series *timeseries.Series, family Family) (*TrainedModel, error) {
	if !e.catalog.Available(family) {
		return nil, &TrainingError{Family: family, Reason: "family not available in this deployment"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := e.prepare(series, family)
	caps := family.Capabilities()
	if len(values) < caps.MinSamples {
		return nil, &TrainingError{
			Family: family,
			Reason: fmt.Sprintf("insufficient samples: need %d, got %d", caps.MinSamples, len(values)),
		}
	}

	start := time.Now()
	score := e.validate(ctx, family, values)

	model := &TrainedModel{
		DatasetID:       series.DatasetID,
		VariableName:    series.VariableName,
		Family:          family,
		TrainedAt:       time.Now().UTC(),
		TrainingSamples: series.Len(),
		ValidationScore: score,
		Interval:        cadence(series),
		LastObserved:    series.Last().Time,
	}
	if err := e.fitInto(ctx, model, values); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TrainingError{Family: family, Reason: "fit failed", Err: err}
	}

	e.logger.Info("Model trained",
		"dataset", series.DatasetID,
		"variable", series.VariableName,
		"family", string(family),
		"samples", len(values),
		"validation_score", score,
		"duration_ms", time.Since(start).Milliseconds())
	return model, nil
}

// TrainWithFallback walks the ordered candidate list, recording each failure
// reason, until one family trains successfully or the list is exhausted.
// Exhaustion returns *AllFailedError carrying the per-family reasons.
// Context cancellation aborts the chain immediately.
func (e *Engine) TrainWithFallback(ctx context.Context, series *timeseries.Series, candidates []Family) (*TrainedModel, []Attempt, error) {
	if len(candidates) == 0 {
		return nil, nil, ErrNoAlgorithmAvailable
	}

	var attempts []Attempt
	seen := make(map[Family]bool, len(candidates))
	for _, family := range candidates {
		if seen[family] {
			continue
		}
		seen[family] = true

		model, err := e.Train(ctx, series, family)
		if err == nil {
			return model, attempts, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempts, ctxErr
		}

		reason := err.Error()
		if trainErr, ok := err.(*TrainingError); ok {
			reason = trainErr.Reason
			if trainErr.Err != nil {
				reason = trainErr.Reason + ": " + trainErr.Err.Error()
			}
		}
		attempts = append(attempts, Attempt{Family: family, Reason: reason})
		e.logger.Warn("Training attempt failed, advancing fallback chain",
			"dataset", series.DatasetID,
			"variable", series.VariableName,
			"family", string(family),
			"reason", reason)
	}
	return nil, attempts, &AllFailedError{Attempts: attempts}
}

// Predict extrapolates horizon future points from a trained model. The
// timestamps continue from the last observed point at the cadence captured
// during training. Confidence is the validation score discounted by how far
// the horizon extends past the training span, monotonically non-increasing
// in horizon.
func (e *Engine) Predict(model *TrainedModel, horizon int) (*Forecast, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	values, err := forecastValues(model, horizon)
	if err != nil {
		return nil, err
	}

	interval := model.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	timestamps := make([]time.Time, horizon)
	for i := 0; i < horizon; i++ {
		timestamps[i] = model.LastObserved.Add(interval * time.Duration(i+1))
	}

	return &Forecast{
		Values:           values,
		Timestamps:       timestamps,
		Family:           model.Family,
		Confidence:       e.Confidence(model, horizon),
		SourceDatasetIDs: []string{model.DatasetID},
	}, nil
}

// Confidence computes the horizon-discounted confidence for a model.
func (e *Engine) Confidence(model *TrainedModel, horizon int) float64 {
	samples := model.TrainingSamples
	if samples < 1 {
		samples = 1
	}
	decay := 1 + e.cfg.ConfidenceDecay*float64(horizon)/float64(samples)
	c := model.ValidationScore / decay
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// prepare extracts the value slice a family trains on. Only the seasonal
// family tolerates missing values (it interpolates); the others train on the
// cleaned series.
func (e *Engine) prepare(series *timeseries.Series, family Family) []float64 {
	if family.Capabilities().ToleratesMissing {
		return series.Values()
	}
	return series.Clean().Values()
}

// fitInto fits the family parameters on values and attaches them to model,
// filling the hyperparameter record as a side product.
func (e *Engine) fitInto(ctx context.Context, model *TrainedModel, values []float64) error {
	switch model.Family {
	case FamilyAutoregressive:
		params, err := fitAutoregressive(values, e.cfg)
		if err != nil {
			return err
		}
		model.AR = params
		model.Hyperparameters = map[string]any{"p": params.P, "d": params.D, "q": params.Q, "aic": params.AIC}
	case FamilySeasonal:
		params, err := fitSeasonal(values, e.cfg)
		if err != nil {
			return err
		}
		model.Seasonal = params
		model.Hyperparameters = map[string]any{
			"alpha": params.Alpha, "beta": params.Beta, "gamma": params.Gamma, "period": params.Period,
		}
	case FamilyRecurrent:
		params, err := fitRecurrent(ctx, values, e.cfg)
		if err != nil {
			return err
		}
		model.Recurrent = params
		model.Hyperparameters = map[string]any{
			"window": params.Window, "hidden_units": params.Hidden,
			"epochs": e.cfg.Epochs, "learning_rate": e.cfg.LearningRate,
		}
	default:
		return fmt.Errorf("unknown algorithm family: %q", model.Family)
	}
	return nil
}

// validate fits on the head of the series and scores one pass over the
// held-out tail. Series too short to split keep a neutral score.
func (e *Engine) validate(ctx context.Context, family Family, values []float64) float64 {
	n := len(values)
	holdout := int(float64(n) * e.cfg.HoldoutFraction)
	trainLen := n - holdout
	if holdout < 1 || trainLen < family.Capabilities().MinSamples {
		return 0.5
	}

	head := &TrainedModel{Family: family}
	if err := e.fitInto(ctx, head, values[:trainLen]); err != nil {
		return 0.5
	}
	predicted, err := forecastValues(head, holdout)
	if err != nil {
		return 0.5
	}

	actual := values[trainLen:]
	lo, hi := minMax(actual)
	rmse := 0.0
	count := 0
	for i := range actual {
		if math.IsNaN(actual[i]) {
			continue
		}
		diff := actual[i] - predicted[i]
		rmse += diff * diff
		count++
	}
	if count == 0 {
		return 0.5
	}
	rmse = math.Sqrt(rmse / float64(count))

	span := hi - lo
	if span <= 0 {
		span = math.Max(math.Abs(hi), 1)
	}
	return 1 / (1 + rmse/span)
}

// forecastValues dispatches a deterministic roll-forward to the family's
// parameter set.
func forecastValues(model *TrainedModel, steps int) ([]float64, error) {
	switch {
	case model.AR != nil:
		return forecastAutoregressive(model.AR, steps), nil
	case model.Seasonal != nil:
		return forecastSeasonal(model.Seasonal, steps), nil
	case model.Recurrent != nil:
		return forecastRecurrent(model.Recurrent, steps), nil
	}
	return nil, fmt.Errorf("model %s/%s has no fitted parameters", model.DatasetID, model.VariableName)
}

func cadence(series *timeseries.Series) time.Duration {
	if interval := series.MedianInterval(); interval > 0 {
		return interval
	}
	return time.Hour
}
