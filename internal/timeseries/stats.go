package timeseries

import (
	"math"
)

// Mean calculates the arithmetic mean of values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance calculates the sample variance of values.
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(len(values)-1)
}

// ACF calculates the autocorrelation function for lags 1..maxLag.
// The returned slice has acf[k-1] = autocorrelation at lag k.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if n == 0 || maxLag <= 0 {
		return nil
	}
	if maxLag >= n {
		maxLag = n - 1
	}

	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	if variance == 0 {
		return make([]float64, maxLag)
	}

	acf := make([]float64, maxLag)
	for lag := 1; lag <= maxLag; lag++ {
		cov := 0.0
		for t := lag; t < n; t++ {
			cov += (values[t] - mean) * (values[t-lag] - mean)
		}
		acf[lag-1] = cov / variance
	}
	return acf
}

// DetectPeriod searches for the strongest autocorrelation peak at a
// non-trivial lag (>= 2). It returns the lag and true when the peak exceeds
// threshold, otherwise 0 and false. A detected period must also repeat at
// least twice within the series.
func DetectPeriod(values []float64, maxLag int, threshold float64) (int, bool) {
	n := len(values)
	if maxLag <= 0 || maxLag > n/2 {
		maxLag = n / 2
	}
	acf := ACF(values, maxLag)
	if acf == nil {
		return 0, false
	}

	bestLag := 0
	bestCorr := threshold
	for lag := 2; lag <= len(acf); lag++ {
		if n < lag*2 {
			break
		}
		if acf[lag-1] > bestCorr {
			bestCorr = acf[lag-1]
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, false
	}
	return bestLag, true
}

// DefaultStationarityAlpha is the significance level used for IsStationary.
const DefaultStationarityAlpha = 0.05

// ADFResult holds the outcome of an augmented Dickey-Fuller unit-root test.
// The null hypothesis is that the series is non-stationary; a p-value below
// the significance level rejects it.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	IsStationary bool
}

// StationaryAt reports whether the test rejects the unit root at the given
// significance level. The comparison is strict, so a p-value exactly equal
// to alpha keeps the null and the series counts as non-stationary.
func (r *ADFResult) StationaryAt(alpha float64) bool {
	return r.PValue < alpha
}

// ADF performs the augmented Dickey-Fuller test with a constant term.
// Returns nil when the series is too short for a meaningful regression.
func ADF(values []float64, maxLag int) *ADFResult {
	n := len(values)
	if n < 10 {
		return nil
	}

	if maxLag <= 0 {
		maxLag = int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	}
	if maxLag >= n-1 {
		maxLag = n - 2
	}

	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = values[i] - values[i-1]
	}

	// Regression: delta_y_t = alpha + beta*y_{t-1} + sum(gamma_i * delta_y_{t-i})
	// The unit-root test statistic is the t-stat of beta.
	nObs := n - maxLag - 1
	if nObs < 8 {
		return nil
	}

	y := make([]float64, nObs)
	x := make([][]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff[t]
		row := make([]float64, 2+maxLag)
		row[0] = 1
		row[1] = values[t]
		for j := 1; j <= maxLag; j++ {
			row[1+j] = diff[t-j]
		}
		x[i] = row
	}

	coeffs, se := olsRegression(x, y)
	if coeffs == nil || se == nil || len(coeffs) < 2 || len(se) < 2 || se[1] == 0 {
		return nil
	}

	tStat := coeffs[1] / se[1]
	pValue := mackinnonPValue(tStat)

	return &ADFResult{
		Statistic:    tStat,
		PValue:       pValue,
		Lags:         maxLag,
		IsStationary: pValue < DefaultStationarityAlpha,
	}
}

// olsRegression performs ordinary least squares, returning coefficients and
// their standard errors.
func olsRegression(x [][]float64, y []float64) (coeffs, stdErrors []float64) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, nil
	}
	k := len(x[0])

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)

	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			xty[j] += x[i][j] * y[i]
			for l := 0; l < k; l++ {
				xtx[j][l] += x[i][j] * x[i][l]
			}
		}
	}

	xtxInv := invertMatrix(xtx)
	if xtxInv == nil {
		return nil, nil
	}

	coeffs = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coeffs[i] += xtxInv[i][j] * xty[j]
		}
	}

	sse := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += coeffs[j] * x[i][j]
		}
		residual := y[i] - pred
		sse += residual * residual
	}

	if n <= k {
		return coeffs, nil
	}

	s2 := sse / float64(n-k)
	stdErrors = make([]float64, k)
	for i := 0; i < k; i++ {
		stdErrors[i] = math.Sqrt(s2 * xtxInv[i][i])
	}
	return coeffs, stdErrors
}

// invertMatrix inverts a square matrix using Gauss-Jordan elimination.
// Returns nil for singular matrices.
func invertMatrix(m [][]float64) [][]float64 {
	n := len(m)
	if n == 0 {
		return nil
	}

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i][:n], m[i])
		aug[i][n+i] = 1
	}

	for i := 0; i < n; i++ {
		maxRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(aug[k][i]) > math.Abs(aug[maxRow][i]) {
				maxRow = k
			}
		}
		aug[i], aug[maxRow] = aug[maxRow], aug[i]

		if math.Abs(aug[i][i]) < 1e-10 {
			return nil
		}

		pivot := aug[i][i]
		for j := 0; j < 2*n; j++ {
			aug[i][j] /= pivot
		}

		for k := 0; k < n; k++ {
			if k != i {
				factor := aug[k][i]
				for j := 0; j < 2*n; j++ {
					aug[k][j] -= factor * aug[i][j]
				}
			}
		}
	}

	result := make([][]float64, n)
	for i := 0; i < n; i++ {
		result[i] = make([]float64, n)
		copy(result[i], aug[i][n:])
	}
	return result
}

// mackinnonPValue approximates the p-value for the ADF statistic using
// MacKinnon (1994) asymptotic critical values for a constant-only regression.
func mackinnonPValue(stat float64) float64 {
	switch {
	case stat < -3.96:
		return 0.001
	case stat < -3.43:
		return 0.01
	case stat < -2.86:
		return 0.05
	case stat < -2.57:
		return 0.10
	case stat < -1.94:
		return 0.25
	case stat < -1.62:
		return 0.50
	default:
		return math.Min(0.5+(stat+1.62)*0.25, 0.99)
	}
}
