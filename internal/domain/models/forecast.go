package models

import "time"

// Regime is the discrete market-tightness state used to condition the
// ensemble weights. It is recomputed per observation, never persisted.
type Regime string

const (
	RegimeNormal Regime = "Normal"
	RegimeTight  Regime = "Tight"
	RegimeCrisis Regime = "Crisis"
)

// ModelArtifact is the immutable output of a Fit call: coefficients, the
// exact feature list used, the training-window bounds, and the fit
// timestamp. Retraining produces a new artifact; artifacts are never
// mutated. The JSON form is the persistence format, so inference can be
// replayed without the original training data.
type ModelArtifact struct {
	Model        string    `json:"model"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Alpha        float64   `json:"alpha"`
	TrainStart   time.Time `json:"train_start"`
	TrainEnd     time.Time `json:"train_end"`
	TrainRows    int       `json:"train_rows"`
	FittedAt     time.Time `json:"fitted_at"`

	// NoSignal marks an artifact whose coefficients shrank to (near) zero
	// during fitting. This is a valid outcome, reported as data.
	NoSignal bool `json:"no_signal,omitempty"`
}

// EnsembleWeights is the weight triple applied to the three point models.
type EnsembleWeights struct {
	Baseline float64 `json:"baseline" yaml:"baseline"`
	Residual float64 `json:"residual" yaml:"residual"`
	Basis    float64 `json:"basis" yaml:"basis"`
}

// Sum returns the total weight; a valid triple sums to 1.0.
func (w EnsembleWeights) Sum() float64 { return w.Baseline + w.Residual + w.Basis }

// ComponentForecasts holds the three point-model outputs that feed the
// ensemble, kept for auditability.
type ComponentForecasts struct {
	Baseline float64 `json:"baseline"`
	Residual float64 `json:"residual"`
	Basis    float64 `json:"basis"`
}

// EnsemblePrediction is the combiner output: the weighted point forecast
// plus the regime and weights that produced it. Immutable once produced.
type EnsemblePrediction struct {
	Date       time.Time          `json:"date"`
	Point      float64            `json:"point_forecast"`
	Components ComponentForecasts `json:"component_forecasts"`
	Regime     Regime             `json:"regime"`
	Weights    EnsembleWeights    `json:"weights_used"`
}

// QuantileForecast carries the sorted quantile triple. P10 <= P50 <= P90
// holds by construction even when the underlying regressions cross.
type QuantileForecast struct {
	Date time.Time `json:"date"`
	P10  float64   `json:"p10"`
	P50  float64   `json:"p50"`
	P90  float64   `json:"p90"`
}

// ForecastRecord is the output contract to downstream consumers: one
// target date, the ensemble point forecast, the quantile band, and the
// component breakdown for auditing.
type ForecastRecord struct {
	TargetDate time.Time          `json:"target_date"`
	Point      float64            `json:"point_forecast"`
	Quantiles  QuantileForecast   `json:"quantiles"`
	Regime     Regime             `json:"regime"`
	Components ComponentForecasts `json:"component_breakdown"`
	Weights    EnsembleWeights    `json:"weights_used"`
	ProducedAt time.Time          `json:"produced_at"`
}

// ValidationRecord is one walk-forward fold outcome. Created only by the
// validation harness; immutable after creation.
type ValidationRecord struct {
	ForecastDate time.Time `json:"forecast_date"`
	HorizonDays  int       `json:"horizon_days"`
	TargetDate   time.Time `json:"target_date"`
	Predicted    float64   `json:"predicted"`
	Actual       float64   `json:"actual"`
	Regime       Regime    `json:"regime_at_forecast"`
	P10          float64   `json:"p10"`
	P50          float64   `json:"p50"`
	P90          float64   `json:"p90"`
}

// Covered reports whether the actual landed inside the quantile band.
func (r ValidationRecord) Covered() bool {
	return r.Actual >= r.P10 && r.Actual <= r.P90
}

// MetricSet is one accuracy aggregate: error metrics plus interval
// coverage over a set of validation records.
type MetricSet struct {
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	R2       float64 `json:"r2"`
	Coverage float64 `json:"coverage"`
	Records  int     `json:"records"`
}

// CoverageFinding is a validation-time calibration finding. It is data,
// not an error: the sweep records it and continues.
type CoverageFinding struct {
	Scope     string  `json:"scope"`
	Empirical float64 `json:"empirical"`
	Nominal   float64 `json:"nominal"`
	Records   int     `json:"records"`
}

// ValidationSummary aggregates a walk-forward sweep: overall metrics and
// the breakouts by horizon and regime, plus any coverage findings.
type ValidationSummary struct {
	Overall   MetricSet             `json:"overall"`
	ByHorizon map[int]MetricSet     `json:"by_horizon"`
	ByRegime  map[Regime]MetricSet  `json:"by_regime"`
	Findings  []CoverageFinding     `json:"coverage_findings,omitempty"`
	Records   []ValidationRecord    `json:"-"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"-"`
	Partial   bool                  `json:"partial"`
}
