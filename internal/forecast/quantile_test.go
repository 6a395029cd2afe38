package forecast

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuantileEstimatorValidation(t *testing.T) {
	_, err := NewQuantileEstimator([]float64{0.1, 0.9}, 0.1)
	assert.Error(t, err)

	_, err = NewQuantileEstimator([]float64{0.1, 0.5, 1.0}, 0.1)
	assert.Error(t, err)

	_, err = NewQuantileEstimator([]float64{0, 0.5, 0.9}, 0.1)
	assert.Error(t, err)

	e, err := NewQuantileEstimator(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultQuantiles, e.Levels())

	// Levels arrive sorted regardless of input order.
	e, err = NewQuantileEstimator([]float64{0.9, 0.1, 0.5}, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.5, 0.9}, e.Levels())
}

func TestQuantileFitArtifactNamesAndOrdering(t *testing.T) {
	// Noisy target so the levels genuinely separate.
	r := rand.New(rand.NewSource(17))
	table := syntheticTable(200, 17)
	for i := range table {
		table[i].Target += 0.2 * r.NormFloat64()
	}

	e, err := NewQuantileEstimator(nil, 0.1)
	require.NoError(t, err)
	arts, err := e.Fit(table)
	require.NoError(t, err)
	require.Len(t, arts, 3)
	assert.Equal(t, "quantile_10", arts[0.10].Model)
	assert.Equal(t, "quantile_50", arts[0.50].Model)
	assert.Equal(t, "quantile_90", arts[0.90].Model)

	for _, obs := range table[:20] {
		band, err := e.Estimate(arts, obs)
		require.NoError(t, err)
		assert.LessOrEqual(t, band.P10, band.P50)
		assert.LessOrEqual(t, band.P50, band.P90)
	}
}

func TestQuantileBandWidensWithNoise(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	table := syntheticTable(200, 5)
	for i := range table {
		table[i].Target += 0.5 * r.NormFloat64()
	}

	e, err := NewQuantileEstimator(nil, 0.1)
	require.NoError(t, err)
	arts, err := e.Fit(table)
	require.NoError(t, err)

	var width float64
	for _, obs := range table {
		band, err := e.Estimate(arts, obs)
		require.NoError(t, err)
		width += band.P90 - band.P10
	}
	width /= float64(len(table))
	assert.Greater(t, width, 0.1)
}

func TestQuantileFitDeterministic(t *testing.T) {
	table := syntheticTable(150, 29)
	e, err := NewQuantileEstimator(nil, 0.1)
	require.NoError(t, err)

	a, err := e.Fit(table)
	require.NoError(t, err)
	b, err := e.Fit(table)
	require.NoError(t, err)

	for _, q := range e.Levels() {
		assert.Equal(t, a[q].Coefficients, b[q].Coefficients, "q=%v", q)
		assert.Equal(t, a[q].Intercept, b[q].Intercept, "q=%v", q)
	}
}

func TestQuantileEstimateMissingArtifact(t *testing.T) {
	table := syntheticTable(120, 2)
	e, err := NewQuantileEstimator(nil, 0.1)
	require.NoError(t, err)
	arts, err := e.Fit(table)
	require.NoError(t, err)
	delete(arts, 0.50)

	_, err = e.Estimate(arts, table[0])
	assert.Error(t, err)
}
