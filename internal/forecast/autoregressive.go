package forecast

import (
	"fmt"
	"math"
)

// ARParams holds the fitted state of an autoregressive model: the selected
// (p, d, q) orders, the estimated coefficients, and the tail of the training
// series needed to roll forecasts forward deterministically.
type ARParams struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`

	Phi   []float64 `json:"phi"`   // AR coefficients
	Theta []float64 `json:"theta"` // MA coefficients
	Mean  float64   `json:"mean"`  // series mean when d == 0

	// Rolling state captured at the end of training.
	RecentDiff      []float64 `json:"recent_diff"`
	RecentResiduals []float64 `json:"recent_residuals"`
	LastValue       float64   `json:"last_value"`

	AIC float64 `json:"aic"`
}

const arMinSamples = 3

// fitAutoregressive selects (p, d, q) by minimizing AIC over the configured
// order grid and returns the fitted parameters.
func fitAutoregressive(values []float64, cfg Config) (*ARParams, error) {
	if len(values) < arMinSamples {
		return nil, fmt.Errorf("need at least %d observations, got %d", arMinSamples, len(values))
	}

	var best *ARParams
	bestAIC := math.Inf(1)

	for d := 0; d <= cfg.MaxD; d++ {
		for p := 0; p <= cfg.MaxP; p++ {
			for q := 0; q <= cfg.MaxQ; q++ {
				if p == 0 && q == 0 {
					continue
				}
				params, aic, ok := fitAROrder(values, p, d, q)
				if !ok {
					continue
				}
				if aic < bestAIC {
					bestAIC = aic
					best = params
				}
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no (p, d, q) order could be fitted on %d observations", len(values))
	}
	return best, nil
}

// fitAROrder fits one candidate order. AR coefficients come from the
// Yule-Walker equations via Levinson-Durbin; MA coefficients are approximated
// from the residual autocorrelation with a damping factor for stability.
func fitAROrder(values []float64, p, d, q int) (*ARParams, float64, bool) {
	work, mean := difference(values, d)
	if d == 0 {
		work = demean(work, mean)
	}
	n := len(work)
	if n < p+q+2 {
		return nil, 0, false
	}

	phi := estimateARCoefficients(work, p)
	theta := estimateMACoefficients(work, phi, q)

	_, residuals := fittedValues(work, phi, theta)

	start := maxInt(p, q)
	sse := 0.0
	count := 0
	for t := start; t < n; t++ {
		sse += residuals[t] * residuals[t]
		count++
	}
	if count == 0 || sse <= 0 {
		return nil, 0, false
	}

	// AIC = n*ln(SSE/n) + 2k with k = p + q + 1 for the variance term.
	k := float64(p + q + 1)
	aic := float64(count)*math.Log(sse/float64(count)) + 2*k

	keepDiff := maxInt(p, 1)
	keepResid := maxInt(q, 1)
	params := &ARParams{
		P:               p,
		D:               d,
		Q:               q,
		Phi:             phi,
		Theta:           theta,
		Mean:            mean,
		RecentDiff:      tail(work, keepDiff),
		RecentResiduals: tail(residuals, keepResid),
		LastValue:       values[len(values)-1],
		AIC:             aic,
	}
	return params, aic, true
}

// forecastAutoregressive rolls the model forward steps points. Future
// residuals are zero; differencing is inverted cumulatively from the last
// observed value.
func forecastAutoregressive(params *ARParams, steps int) []float64 {
	diff := append([]float64(nil), params.RecentDiff...)
	resid := append([]float64(nil), params.RecentResiduals...)
	last := params.LastValue

	out := make([]float64, steps)
	for h := 0; h < steps; h++ {
		ar := 0.0
		for i := 0; i < params.P && i < len(diff); i++ {
			ar += params.Phi[i] * diff[len(diff)-1-i]
		}
		ma := 0.0
		for i := 0; i < params.Q && i < len(resid); i++ {
			ma += params.Theta[i] * resid[len(resid)-1-i]
		}
		next := ar + ma

		diff = append(diff, next)
		resid = append(resid, 0)

		if params.D == 0 {
			out[h] = next + params.Mean
		} else {
			last += next
			out[h] = last
		}
	}
	return out
}

// difference applies first differencing d times and returns the result plus
// the original mean.
func difference(values []float64, d int) ([]float64, float64) {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	if len(values) > 0 {
		mean /= float64(len(values))
	}

	result := values
	for i := 0; i < d && len(result) > 1; i++ {
		diffed := make([]float64, len(result)-1)
		for j := 1; j < len(result); j++ {
			diffed[j-1] = result[j] - result[j-1]
		}
		result = diffed
	}
	return result, mean
}

func demean(values []float64, mean float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v - mean
	}
	return out
}

// estimateARCoefficients solves the Yule-Walker equations with the
// Levinson-Durbin recursion.
func estimateARCoefficients(values []float64, p int) []float64 {
	if p == 0 || len(values) < p+1 {
		return nil
	}
	acf := autocorrelation(values, p)
	if acf == nil {
		return make([]float64, p)
	}
	return levinsonDurbin(acf, p)
}

// estimateMACoefficients approximates MA coefficients from the
// autocorrelation of the AR residuals, damped for stability.
func estimateMACoefficients(values []float64, phi []float64, q int) []float64 {
	if q == 0 {
		return nil
	}
	p := len(phi)
	residuals := make([]float64, len(values))
	for t := p; t < len(values); t++ {
		predicted := 0.0
		for i := 0; i < p; i++ {
			predicted += phi[i] * values[t-1-i]
		}
		residuals[t] = values[t] - predicted
	}

	theta := make([]float64, q)
	acf := autocorrelation(residuals[p:], q)
	for i := 0; i < q && i < len(acf); i++ {
		theta[i] = acf[i] * 0.5
	}
	return theta
}

// autocorrelation computes the ACF for lags 1..k.
func autocorrelation(values []float64, k int) []float64 {
	n := len(values)
	if n == 0 || k <= 0 {
		return nil
	}
	mu := 0.0
	for _, v := range values {
		mu += v
	}
	mu /= float64(n)

	variance := 0.0
	for _, v := range values {
		diff := v - mu
		variance += diff * diff
	}
	if variance == 0 {
		return make([]float64, k)
	}

	acf := make([]float64, k)
	for lag := 1; lag <= k; lag++ {
		cov := 0.0
		for t := lag; t < n; t++ {
			cov += (values[t] - mu) * (values[t-lag] - mu)
		}
		acf[lag-1] = cov / variance
	}
	return acf
}

// levinsonDurbin solves the Yule-Walker system.
func levinsonDurbin(acf []float64, p int) []float64 {
	if len(acf) == 0 || p == 0 {
		return nil
	}
	if len(acf) < p {
		p = len(acf)
	}

	phi := make([][]float64, p+1)
	for i := range phi {
		phi[i] = make([]float64, p+1)
	}

	phi[1][1] = acf[0]
	v := 1 - acf[0]*acf[0]

	for k := 2; k <= p; k++ {
		num := acf[k-1]
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-1-j]
		}
		if v == 0 {
			break
		}
		phi[k][k] = num / v
		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}
		v = v * (1 - phi[k][k]*phi[k][k])
	}

	result := make([]float64, p)
	for i := 1; i <= p; i++ {
		result[i-1] = phi[p][i]
	}
	return result
}

// fittedValues computes one-step-ahead fitted values and residuals.
func fittedValues(values, phi, theta []float64) (fitted, residuals []float64) {
	n := len(values)
	p := len(phi)
	q := len(theta)
	start := maxInt(p, q)

	fitted = make([]float64, n)
	residuals = make([]float64, n)
	if n <= start {
		return fitted, residuals
	}

	for t := start; t < n; t++ {
		ar := 0.0
		for i := 0; i < p; i++ {
			ar += phi[i] * values[t-1-i]
		}
		ma := 0.0
		for i := 0; i < q && t-1-i >= 0; i++ {
			ma += theta[i] * residuals[t-1-i]
		}
		fitted[t] = ar + ma
		residuals[t] = values[t] - fitted[t]
	}
	return fitted, residuals
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return append([]float64(nil), values...)
	}
	return append([]float64(nil), values[len(values)-n:]...)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
