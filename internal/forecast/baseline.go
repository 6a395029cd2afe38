package forecast

import (
	"fmt"
	"time"

	"FuelCast/internal/domain/models"
)

// Model is the uniform fit/predict contract implemented by every point
// forecaster. Fit consumes a contract-validated training window and
// returns an immutable artifact; Predict is a pure function of an
// artifact and one observation.
type Model interface {
	Name() string
	Fit(window models.FeatureTable) (models.ModelArtifact, error)
	Predict(artifact models.ModelArtifact, obs models.Observation) (float64, error)
}

// BaselineFeatures is the pass-through feature set: lagged wholesale
// prices plus the seasonal markers. Deliberately collinear, which is why
// regularization is a correctness requirement here, not a tuning knob.
var BaselineFeatures = []string{
	FeatureRBOBLag3,
	FeatureRBOBLag7,
	FeatureRBOBLag14,
	FeatureCrackSpread,
	FeatureWinterBlend,
	FeatureDaysSinceOct1,
}

// BaselineModel is the regularized pass-through regression: retail price
// from lagged wholesale price and seasonal features. Regularization
// strength is chosen by expanding-window CV inside the training window.
type BaselineModel struct {
	alphaGrid []float64
	cvSplits  int
}

// NewBaselineModel builds the model with the given alpha grid and CV
// split count; zero values fall back to defaults.
func NewBaselineModel(alphaGrid []float64, cvSplits int) *BaselineModel {
	if len(alphaGrid) == 0 {
		alphaGrid = DefaultAlphaGrid
	}
	if cvSplits <= 0 {
		cvSplits = 5
	}
	return &BaselineModel{alphaGrid: alphaGrid, cvSplits: cvSplits}
}

func (m *BaselineModel) Name() string { return "baseline" }

// Fit validates the window, selects alpha by expanding-window CV, and
// solves the ridge system. Identical training data yields identical
// coefficients.
func (m *BaselineModel) Fit(window models.FeatureTable) (models.ModelArtifact, error) {
	if err := ValidateTable(window); err != nil {
		return models.ModelArtifact{}, fmt.Errorf("baseline fit: %w", err)
	}
	if err := GuardFeatures(m.Name(), BaselineFeatures, -1); err != nil {
		return models.ModelArtifact{}, err
	}

	X, y := featureMatrix(window, BaselineFeatures)
	alpha := selectAlpha(X, y, m.alphaGrid, m.cvSplits)
	fit, err := fitRidge(X, y, alpha)
	if err != nil {
		return models.ModelArtifact{}, fmt.Errorf("baseline fit: %w", err)
	}

	start, end := window.Span()
	return models.ModelArtifact{
		Model:        m.Name(),
		Features:     append([]string(nil), BaselineFeatures...),
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
func (m *BaselineModel) Predict(artifact models.ModelArtifact, obs models.Observation) (float64, error) {
	return predictLinear(artifact, obs)
}

// predictLinear evaluates any linear artifact against an observation,
// shared by every point model.
func predictLinear(artifact models.ModelArtifact, obs models.Observation) (float64, error) {
	if len(artifact.Coefficients) != len(artifact.Features) {
		return 0, fmt.Errorf("%w: artifact %s has %d coefficients for %d features",
			ErrDataContract, artifact.Model, len(artifact.Coefficients), len(artifact.Features))
	}
	x, err := featureVector(obs, artifact.Features)
	if err != nil {
		return 0, fmt.Errorf("%s predict: %w", artifact.Model, err)
	}
	v := artifact.Intercept
	for j, c := range artifact.Coefficients {
		v += c * x[j]
	}
	return v, nil
}
