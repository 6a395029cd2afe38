package forecast

import (
	"fmt"
	"math"
	"time"

	"FuelCast/internal/domain/models"
)

// SurpriseFeatures is the stage-2 feature set: fundamental surprises that
// the pass-through baseline cannot see. The target, and anything derived
// from it at zero lag, is categorically excluded and enforced at fit time.
var SurpriseFeatures = []string{
	FeatureInventorySurpZ,
	FeatureUtilization,
	FeatureDaysSupply,
}

// noSignalNorm is the coefficient L2 norm under which a stage-2 fit is
// reported as carrying no recoverable signal.
const noSignalNorm = 1e-3

// ResidualModel is the two-stage surprise model. Stage 1 computes the
// baseline's residuals over the training window; stage 2 ridge-regresses
// those residuals (never the raw target) on the surprise features. The
// fitted baseline artifact is an explicit constructor input, making the
// stage ordering a structural dependency rather than a convention.
type ResidualModel struct {
	baseline     *BaselineModel
	baselineArt  models.ModelArtifact
	alphaGrid    []float64
	cvSplits     int
	extraFeature []string // optional additional stage-2 features, guarded like the rest
}

// NewResidualModel builds the two-stage model around an already fitted
// baseline artifact.
func NewResidualModel(baseline *BaselineModel, baselineArt models.ModelArtifact, alphaGrid []float64, cvSplits int) *ResidualModel {
	if len(alphaGrid) == 0 {
		alphaGrid = DefaultAlphaGrid
	}
	if cvSplits <= 0 {
		cvSplits = 5
	}
	return &ResidualModel{baseline: baseline, baselineArt: baselineArt, alphaGrid: alphaGrid, cvSplits: cvSplits}
}

// WithExtraFeatures adds stage-2 features beyond the default surprise
// set. They pass through the same leakage guard as the defaults, so a
// caller cannot smuggle the target in. Used by tests and by recalibration
// experiments.
func (m *ResidualModel) WithExtraFeatures(features ...string) *ResidualModel {
	m.extraFeature = append(m.extraFeature, features...)
	return m
}

func (m *ResidualModel) Name() string { return "residual" }

func (m *ResidualModel) stage2Features() []string {
	fs := append([]string(nil), SurpriseFeatures...)
	return append(fs, m.extraFeature...)
}

// Fit runs both stages. Stage 1 must complete (baseline predictions and
// residuals) before stage 2 is solved. A near-zero stage-2 coefficient
// vector means the baseline already captured all recoverable signal; it
// is flagged on the artifact, not errored.
func (m *ResidualModel) Fit(window models.FeatureTable) (models.ModelArtifact, error) {
	if err := ValidateTable(window); err != nil {
		return models.ModelArtifact{}, fmt.Errorf("residual fit: %w", err)
	}
	features := m.stage2Features()
	if err := GuardFeatures(m.Name(), features, -1); err != nil {
		return models.ModelArtifact{}, err
	}

	// Stage 1: residuals against the fitted baseline.
	residuals := make([]float64, len(window))
	for i, obs := range window {
		base, err := m.baseline.Predict(m.baselineArt, obs)
		if err != nil {
			return models.ModelArtifact{}, fmt.Errorf("residual fit stage 1: %w", err)
		}
		residuals[i] = obs.Target - base
	}

	// Stage 2: regress residuals on the surprise features.
	X := make([][]float64, len(window))
	for i, obs := range window {
		x, err := featureVector(obs, features)
		if err != nil {
			return models.ModelArtifact{}, fmt.Errorf("residual fit stage 2: %w", err)
		}
		X[i] = x
	}
	alpha := selectAlpha(X, residuals, m.alphaGrid, m.cvSplits)
	fit, err := fitWeightedRidge(X, residuals, nil, alpha)
	if err != nil {
		return models.ModelArtifact{}, fmt.Errorf("residual fit stage 2: %w", err)
	}

	var norm float64
	for _, c := range fit.coef {
		norm += c * c
	}
	start, end := window.Span()
	return models.ModelArtifact{
		Model:        m.Name(),
		Features:     features,
		Coefficients: fit.coef,
		Intercept:    fit.intercept,
		Alpha:        alpha,
		TrainStart:   start,
		TrainEnd:     end,
		TrainRows:    len(window),
		FittedAt:     time.Now().UTC(),
		NoSignal:     math.Sqrt(norm) < noSignalNorm,
	}, nil
}

// Predict returns baseline prediction plus the stage-2 surprise
// correction.
func (m *ResidualModel) Predict(artifact models.ModelArtifact, obs models.Observation) (float64, error) {
	return residualPredict(m.baselineArt, artifact, obs)
}

// residualPredict evaluates a residual artifact from persisted artifacts
// alone, without the fitted model, for artifact replay.
func residualPredict(baselineArt, residualArt models.ModelArtifact, obs models.Observation) (float64, error) {
	base, err := predictLinear(baselineArt, obs)
	if err != nil {
		return 0, fmt.Errorf("residual predict: %w", err)
	}
	corr, err := predictLinear(residualArt, obs)
	if err != nil {
		return 0, err
	}
	return base + corr, nil
}
