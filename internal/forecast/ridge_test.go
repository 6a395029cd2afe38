package forecast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRidgeRecoversLinearRelation(t *testing.T) {
	// y = 2*x0 - 1*x1 + 5, no noise.
	X := [][]float64{}
	y := []float64{}
	for i := 0; i < 50; i++ {
		x0 := float64(i % 11)
		x1 := float64((i * 7) % 13)
		X = append(X, []float64{x0, x1})
		y = append(y, 2*x0-x1+5)
	}

	fit, err := fitRidge(X, y, 1e-8)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, fit.coef[0], 1e-4)
	assert.InDelta(t, -1.0, fit.coef[1], 1e-4)
	assert.InDelta(t, 5.0, fit.intercept, 1e-3)
}

func TestFitRidgeSingularWithoutRegularization(t *testing.T) {
	// Two identical columns and alpha zero: rank deficient.
	X := [][]float64{}
	y := []float64{}
	for i := 0; i < 20; i++ {
		v := float64(i)
		X = append(X, []float64{v, v})
		y = append(y, 3*v)
	}

	_, err := fitRidge(X, y, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingularFit))
}

func TestFitRidgeCollinearWithRegularization(t *testing.T) {
	// Same degenerate design succeeds once regularized.
	X := [][]float64{}
	y := []float64{}
	for i := 0; i < 20; i++ {
		v := float64(i)
		X = append(X, []float64{v, v})
		y = append(y, 3*v)
	}

	fit, err := fitRidge(X, y, 0.1)
	require.NoError(t, err)
	// The two columns share the signal.
	assert.InDelta(t, 3.0, fit.coef[0]+fit.coef[1], 0.05)
}

func TestFitRidgeRejectsNegativeAlpha(t *testing.T) {
	_, err := fitRidge([][]float64{{1}, {2}}, []float64{1, 2}, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingularFit))
}

func TestFitRidgeEmptyInput(t *testing.T) {
	_, err := fitRidge(nil, nil, 0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataContract))
}

func TestSelectAlphaSmallWindowFallsBackToStrongest(t *testing.T) {
	grid := []float64{0.01, 0.1, 1.0}
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{1, 2, 3, 4}

	got := selectAlpha(X, y, grid, 5)
	assert.Equal(t, 1.0, got)
}

func TestSelectAlphaDeterministic(t *testing.T) {
	table := syntheticTable(120, 7)
	X, y := featureMatrix(table, BaselineFeatures)

	a := selectAlpha(X, y, DefaultAlphaGrid, 5)
	b := selectAlpha(X, y, DefaultAlphaGrid, 5)
	assert.Equal(t, a, b)
}

func TestRMSE(t *testing.T) {
	assert.Equal(t, 0.0, rmse(nil, nil))
	assert.InDelta(t, 5.0, rmse([]float64{0}, []float64{5}), 1e-9)
	assert.InDelta(t, 2.0, rmse([]float64{1, 3}, []float64{3, 1}), 1e-9)
}
