package forecast

import (
	"fmt"
	"time"

	"FuelCast/internal/domain/models"
)

// DefaultMinBasisLag is the minimum lag, in observations, at which a
// basis feature (target minus wholesale price) may enter the model. A
// zero-lag basis is algebraically the target minus an observable price,
// so the regression would reconstruct the target exactly.
const DefaultMinBasisLag = 7

// BasisModel predicts the target from the near-term wholesale price plus
// strictly lagged basis terms and the refining-margin spread.
type BasisModel struct {
	features  []string
	minLag    int
	alphaGrid []float64
	cvSplits  int
}

// NewBasisModel builds the basis-adjusted market model. minLag below one
// falls back to DefaultMinBasisLag; the default feature set uses the
// 7- and 14-observation basis lags.
func NewBasisModel(minLag int, alphaGrid []float64, cvSplits int) *BasisModel {
	if minLag < 1 {
		minLag = DefaultMinBasisLag
	}
	if len(alphaGrid) == 0 {
		alphaGrid = DefaultAlphaGrid
	}
	if cvSplits <= 0 {
		cvSplits = 5
	}
	return &BasisModel{
		features: []string{
			FeaturePriceRBOB,
			FeatureBasisLag7,
			FeatureBasisLag14,
			FeatureCrackSpread,
		},
		minLag:    minLag,
		alphaGrid: alphaGrid,
		cvSplits:  cvSplits,
	}
}

// WithFeatures overrides the feature list. The override passes through
// the same minimum-lag guard at fit time, so substituting a zero-lag
// basis feature (the historical incident) still fails loudly.
func (m *BasisModel) WithFeatures(features ...string) *BasisModel {
	m.features = features
	return m
}

func (m *BasisModel) Name() string { return "basis" }

// Fit validates the window, enforces the minimum basis lag, and solves
// the regularized regression.
func (m *BasisModel) Fit(window models.FeatureTable) (models.ModelArtifact, error) {
	if err := ValidateTable(window); err != nil {
		return models.ModelArtifact{}, fmt.Errorf("basis fit: %w", err)
	}
	if err := GuardFeatures(m.Name(), m.features, m.minLag); err != nil {
		return models.ModelArtifact{}, err
	}

	X := make([][]float64, len(window))
	y := make([]float64, len(window))
	for i, obs := range window {
		x, err := featureVector(obs, m.features)
		if err != nil {
			return models.ModelArtifact{}, fmt.Errorf("basis fit: %w", err)
		}
		X[i] = x
		y[i] = obs.Target
	}
	alpha := selectAlpha(X, y, m.alphaGrid, m.cvSplits)
	fit, err := fitRidge(X, y, alpha)
	if err != nil {
		return models.ModelArtifact{}, fmt.Errorf("basis fit: %w", err)
	}

	start, end := window.Span()
	return models.ModelArtifact{
		Model:        m.Name(),
		Features:     append([]string(nil), m.features...),
		Coefficients: fit.coef,
		Intercept:    fit.intercept,
		Alpha:        alpha,
		TrainStart:   start,
		TrainEnd:     end,
		TrainRows:    len(window),
		FittedAt:     time.Now().UTC(),
	}, nil
}

// Predict evaluates the artifact on one observation.
func (m *BasisModel) Predict(artifact models.ModelArtifact, obs models.Observation) (float64, error) {
	return predictLinear(artifact, obs)
}
