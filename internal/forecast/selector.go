package forecast

import (
	"github.com/terracastio/terracast/internal/timeseries"
)

// Selector ranks algorithm families for a series. It is pure and
// deterministic: availability comes from the injected catalog, thresholds
// from configuration, and no I/O happens during selection.
type Selector struct {
	cfg     Config
	catalog *Catalog
}

// NewSelector creates a selector with the given thresholds and availability
// catalog.
func NewSelector(cfg Config, catalog *Catalog) *Selector {
	return &Selector{cfg: cfg, catalog: catalog}
}

// Select returns a total ordering over all families: the preferred family
// first, remaining available families next, unavailable families appended
// last so the fallback chain is always complete and deterministic. Returns
// ErrNoAlgorithmAvailable when no family is available at all.
//
// Policy, first match wins:
//  1. fewer than SmallSampleThreshold observations: autoregressive.
//  2. detectable periodicity and seasonal_additive available: seasonal_additive.
//  3. at least LargeSampleThreshold observations, non-stationary, and
//     recurrent available: recurrent.
//  4. otherwise autoregressive.
func (s *Selector) Select(series *timeseries.Series) ([]Family, error) {
	if !s.catalog.Any() {
		return nil, ErrNoAlgorithmAvailable
	}

	values := series.Clean().Values()
	n := len(values)

	primary := FamilyAutoregressive
	switch {
	case n < s.cfg.SmallSampleThreshold:
		primary = FamilyAutoregressive
	case s.hasPeriodicity(values) && s.catalog.Available(FamilySeasonal):
		primary = FamilySeasonal
	case n >= s.cfg.LargeSampleThreshold && s.isNonStationary(values) && s.catalog.Available(FamilyRecurrent):
		primary = FamilyRecurrent
	}

	ranked := make([]Family, 0, len(Families()))
	if s.catalog.Available(primary) {
		ranked = append(ranked, primary)
	}
	for _, f := range Families() {
		if f != primary && s.catalog.Available(f) {
			ranked = append(ranked, f)
		}
	}
	for _, f := range Families() {
		if !s.catalog.Available(f) {
			ranked = append(ranked, f)
		}
	}
	return ranked, nil
}

func (s *Selector) hasPeriodicity(values []float64) bool {
	maxLag := s.cfg.MaxPeriodLag
	if maxLag <= 0 {
		maxLag = len(values) / 2
	}
	_, ok := timeseries.DetectPeriod(values, maxLag, s.cfg.PeriodicityThreshold)
	return ok
}

// isNonStationary runs the augmented Dickey-Fuller test at the configured
// significance level. Series too short for the test are treated as
// stationary, which keeps them away from the recurrent family.
func (s *Selector) isNonStationary(values []float64) bool {
	result := timeseries.ADF(values, 0)
	if result == nil {
		return false
	}
	alpha := s.cfg.StationarityAlpha
	if alpha <= 0 {
		alpha = timeseries.DefaultStationarityAlpha
	}
	return !result.StationaryAt(alpha)
}
