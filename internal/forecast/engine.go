package forecast

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"FuelCast/internal/domain/models"
)

// EngineParams bundles the tunables shared by every fit.
type EngineParams struct {
	AlphaGrid   []float64
	CVSplits    int
	MinBasisLag int
	Quantiles   []float64
	QuantAlpha  float64
	Weights     map[models.Regime]models.EnsembleWeights
	Thresholds  RegimeThresholds
}

// Artifacts is one complete fitted ensemble: the three point models plus
// the per-level quantile fits, all trained on the same window.
type Artifacts struct {
	Baseline  models.ModelArtifact             `json:"baseline"`
	Residual  models.ModelArtifact             `json:"residual"`
	Basis     models.ModelArtifact             `json:"basis"`
	Quantiles map[float64]models.ModelArtifact `json:"-"`
}

// artifactsJSON is the wire form: quantile levels become string keys,
// which float64 map keys cannot be under encoding/json.
type artifactsJSON struct {
	Baseline  models.ModelArtifact            `json:"baseline"`
	Residual  models.ModelArtifact            `json:"residual"`
	Basis     models.ModelArtifact            `json:"basis"`
	Quantiles map[string]models.ModelArtifact `json:"quantiles"`
}

func quantileKey(q float64) string { return strconv.FormatFloat(q, 'f', 2, 64) }

func (a Artifacts) MarshalJSON() ([]byte, error) {
	out := artifactsJSON{
		Baseline:  a.Baseline,
		Residual:  a.Residual,
		Basis:     a.Basis,
		Quantiles: make(map[string]models.ModelArtifact, len(a.Quantiles)),
	}
	for q, art := range a.Quantiles {
		out.Quantiles[quantileKey(q)] = art
	}
	return json.Marshal(out)
}

func (a *Artifacts) UnmarshalJSON(b []byte) error {
	var in artifactsJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	a.Baseline = in.Baseline
	a.Residual = in.Residual
	a.Basis = in.Basis
	a.Quantiles = make(map[float64]models.ModelArtifact, len(in.Quantiles))
	for key, art := range in.Quantiles {
		q, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return fmt.Errorf("artifact quantile key %q: %w", key, err)
		}
		a.Quantiles[q] = art
	}
	return nil
}

// Engine owns the full fit-then-forecast pipeline: classify the regime,
// run the three point models, blend under the regime weights, and attach
// the quantile band.
type Engine struct {
	params     EngineParams
	classifier *Classifier
	combiner   *Combiner
	quantile   *QuantileEstimator
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Thresholds == (RegimeThresholds{}) {
		params.Thresholds = RegimeThresholds{High: 26, Low: 23}
	}
	classifier, err := NewClassifier(params.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	combiner, err := NewCombiner(params.Weights)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	quantile, err := NewQuantileEstimator(params.Quantiles, params.QuantAlpha)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{
		params:     params,
		classifier: classifier,
		combiner:   combiner,
		quantile:   quantile,
	}, nil
}

// Classifier exposes the regime classifier for callers that label
// observations outside a forecast, such as the validation metrics.
func (e *Engine) Classifier() *Classifier { return e.classifier }

// Combiner exposes the weight table for the API layer.
func (e *Engine) Combiner() *Combiner { return e.combiner }

// Fit trains the three point models and the quantile regressions on one
// training window. The engine is horizon-agnostic: callers that forecast
// h days ahead align the window's targets with FeatureTable.AlignTarget
// first. The residual model consumes the freshly fitted baseline
// artifact, never a stale one.
func (e *Engine) Fit(window models.FeatureTable) (Artifacts, error) {
	baseline := NewBaselineModel(e.params.AlphaGrid, e.params.CVSplits)
	baseArt, err := baseline.Fit(window)
	if err != nil {
		return Artifacts{}, err
	}

	residual := NewResidualModel(baseline, baseArt, e.params.AlphaGrid, e.params.CVSplits)
	residArt, err := residual.Fit(window)
	if err != nil {
		return Artifacts{}, err
	}

	basis := NewBasisModel(e.params.MinBasisLag, e.params.AlphaGrid, e.params.CVSplits)
	basisArt, err := basis.Fit(window)
	if err != nil {
		return Artifacts{}, err
	}

	quantArts, err := e.quantile.Fit(window)
	if err != nil {
		return Artifacts{}, err
	}

	return Artifacts{
		Baseline:  baseArt,
		Residual:  residArt,
		Basis:     basisArt,
		Quantiles: quantArts,
	}, nil
}

// Forecast produces one record for obs from a fitted artifact set.
// targetDate is the date the forecast is for; obs supplies the features
// known at forecast time.
func (e *Engine) Forecast(arts Artifacts, obs models.Observation, targetDate time.Time) (models.ForecastRecord, error) {
	if err := ValidateObservation(obs); err != nil {
		return models.ForecastRecord{}, err
	}
	regime, err := e.classifier.Classify(obs)
	if err != nil {
		return models.ForecastRecord{}, err
	}

	basePred, err := predictLinear(arts.Baseline, obs)
	if err != nil {
		return models.ForecastRecord{}, fmt.Errorf("baseline predict: %w", err)
	}
	residPred, err := residualPredict(arts.Baseline, arts.Residual, obs)
	if err != nil {
		return models.ForecastRecord{}, fmt.Errorf("residual predict: %w", err)
	}
	basisPred, err := predictLinear(arts.Basis, obs)
	if err != nil {
		return models.ForecastRecord{}, fmt.Errorf("basis predict: %w", err)
	}

	parts := models.ComponentForecasts{
		Baseline: basePred,
		Residual: residPred,
		Basis:    basisPred,
	}
	blended, err := e.combiner.Combine(regime, parts)
	if err != nil {
		return models.ForecastRecord{}, err
	}
	band, err := e.quantile.Estimate(arts.Quantiles, obs)
	if err != nil {
		return models.ForecastRecord{}, err
	}
	band.Date = targetDate

	return models.ForecastRecord{
		TargetDate: targetDate,
		Point:      blended.Point,
		Quantiles:  band,
		Regime:     regime,
		Components: parts,
		Weights:    blended.Weights,
		ProducedAt: time.Now().UTC(),
	}, nil
}
