package forecast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasisFitDefaultFeatures(t *testing.T) {
	table := syntheticTable(180, 9)
	m := NewBasisModel(0, nil, 0)

	art, err := m.Fit(table)
	require.NoError(t, err)
	assert.Equal(t, "basis", art.Model)
	assert.Contains(t, art.Features, FeatureBasisLag7)
	assert.Contains(t, art.Features, FeatureBasisLag14)

	pred, err := m.Predict(art, table[0])
	require.NoError(t, err)
	assert.False(t, pred != pred, "prediction must be finite")
}

func TestBasisRejectsZeroLagBasisFeature(t *testing.T) {
	// The historical incident: substituting the same-day retail margin
	// for a lagged basis hands the model the target.
	table := syntheticTable(120, 9)
	m := NewBasisModel(0, nil, 0).WithFeatures(FeaturePriceRBOB, FeatureRetailMargin)

	_, err := m.Fit(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeakageGuard))
}

func TestBasisRejectsLagBelowMinimum(t *testing.T) {
	table := syntheticTable(120, 9)
	// Raising the minimum above 7 invalidates the default basis_lag7.
	m := NewBasisModel(10, nil, 0)

	_, err := m.Fit(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeakageGuard))
	assert.Contains(t, err.Error(), FeatureBasisLag7)
}

func TestBasisMinLagDefaultsToSeven(t *testing.T) {
	m := NewBasisModel(-3, nil, 0)
	assert.Equal(t, DefaultMinBasisLag, m.minLag)
}
