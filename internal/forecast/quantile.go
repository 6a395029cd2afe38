package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"FuelCast/internal/domain/models"
)

// DefaultQuantiles are the levels fitted for the interval forecast.
var DefaultQuantiles = []float64{0.10, 0.50, 0.90}

const (
	irlsIterations = 30
	irlsEps        = 1e-6
)

// QuantileEstimator fits one regularized quantile regression per level
// on the baseline feature set via iteratively reweighted least squares.
// Each level is fitted independently, so raw fits can cross; Estimate
// sorts the three values before labeling them, keeping P10 <= P50 <= P90
// on every emitted forecast.
type QuantileEstimator struct {
	features  []string
	quantiles []float64
	alpha     float64
}

func NewQuantileEstimator(quantiles []float64, alpha float64) (*QuantileEstimator, error) {
	if len(quantiles) == 0 {
		quantiles = DefaultQuantiles
	}
	if len(quantiles) != 3 {
		return nil, fmt.Errorf("quantile estimator needs exactly three levels, got %d", len(quantiles))
	}
	sorted := append([]float64(nil), quantiles...)
	sort.Float64s(sorted)
	for _, q := range sorted {
		if q <= 0 || q >= 1 {
			return nil, fmt.Errorf("quantile level %v outside (0, 1)", q)
		}
	}
	if alpha <= 0 {
		alpha = 0.1
	}
	return &QuantileEstimator{
		features:  append([]string(nil), BaselineFeatures...),
		quantiles: sorted,
		alpha:     alpha,
	}, nil
}

// Levels returns the fitted quantile levels in ascending order.
func (e *QuantileEstimator) Levels() []float64 {
	return append([]float64(nil), e.quantiles...)
}

// Fit produces one artifact per level, keyed by the level itself.
func (e *QuantileEstimator) Fit(window models.FeatureTable) (map[float64]models.ModelArtifact, error) {
	if err := ValidateTable(window); err != nil {
		return nil, fmt.Errorf("quantile fit: %w", err)
	}
	if err := GuardFeatures("quantile", e.features, -1); err != nil {
		return nil, err
	}

	X := make([][]float64, len(window))
	y := make([]float64, len(window))
	for i, obs := range window {
		x, err := featureVector(obs, e.features)
		if err != nil {
			return nil, fmt.Errorf("quantile fit: %w", err)
		}
		X[i] = x
		y[i] = obs.Target
	}

	start, end := window.Span()
	out := make(map[float64]models.ModelArtifact, len(e.quantiles))
	for _, q := range e.quantiles {
		fit, err := e.fitLevel(X, y, q)
		if err != nil {
			return nil, fmt.Errorf("quantile fit q=%.2f: %w", q, err)
		}
		out[q] = models.ModelArtifact{
			Model:        fmt.Sprintf("quantile_%02.0f", q*100),
			Features:     append([]string(nil), e.features...),
			Coefficients: fit.coef,
			Intercept:    fit.intercept,
			Alpha:        e.alpha,
			TrainStart:   start,
			TrainEnd:     end,
			TrainRows:    len(window),
			FittedAt:     time.Now().UTC(),
		}
	}
	return out, nil
}

// fitLevel minimizes the pinball loss at level q by IRLS: each pass
// solves a weighted ridge with weights q/|r| above the fit and (1-q)/|r|
// below it. The iteration count is fixed and the start point is the
// unweighted fit, so repeated fits on the same window are identical.
func (e *QuantileEstimator) fitLevel(X [][]float64, y []float64, q float64) (linearFit, error) {
	w := make([]float64, len(y))
	for i := range w {
		w[i] = 1
	}
	fit, err := fitWeightedRidge(X, y, w, e.alpha)
	if err != nil {
		return linearFit{}, err
	}
	for iter := 0; iter < irlsIterations; iter++ {
		for i := range y {
			r := y[i] - fit.predict(X[i])
			if r >= 0 {
				w[i] = q / math.Max(math.Abs(r), irlsEps)
			} else {
				w[i] = (1 - q) / math.Max(math.Abs(r), irlsEps)
			}
		}
		next, err := fitWeightedRidge(X, y, w, e.alpha)
		if err != nil {
			return linearFit{}, err
		}
		fit = next
	}
	return fit, nil
}

// Estimate evaluates the three per-level artifacts on obs and returns
// the sorted interval.
func (e *QuantileEstimator) Estimate(artifacts map[float64]models.ModelArtifact, obs models.Observation) (models.QuantileForecast, error) {
	vals := make([]float64, 0, len(e.quantiles))
	for _, q := range e.quantiles {
		art, ok := artifacts[q]
		if !ok {
			return models.QuantileForecast{}, fmt.Errorf("quantile estimate: no artifact for level %v", q)
		}
		v, err := predictLinear(art, obs)
		if err != nil {
			return models.QuantileForecast{}, fmt.Errorf("quantile estimate q=%.2f: %w", q, err)
		}
		vals = append(vals, v)
	}
	sort.Float64s(vals)
	return models.QuantileForecast{
		Date: obs.Date,
		P10:  vals[0],
		P50:  vals[1],
		P90:  vals[2],
	}, nil
}
