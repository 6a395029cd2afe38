package forecast

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"FuelCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(EngineParams{})
	require.NoError(t, err)
	return e
}

func TestEngineFitAndForecast(t *testing.T) {
	table := syntheticTableWithSurprise(250, 31)
	e := testEngine(t)

	arts, err := e.Fit(table)
	require.NoError(t, err)
	assert.Equal(t, "baseline", arts.Baseline.Model)
	assert.Equal(t, "residual", arts.Residual.Model)
	assert.Equal(t, "basis", arts.Basis.Model)
	require.Len(t, arts.Quantiles, 3)

	obs := table[len(table)-1]
	target := obs.Date.AddDate(0, 0, 7)
	rec, err := e.Forecast(arts, obs, target)
	require.NoError(t, err)

	assert.Equal(t, target, rec.TargetDate)
	assert.Equal(t, target, rec.Quantiles.Date)
	assert.LessOrEqual(t, rec.Quantiles.P10, rec.Quantiles.P50)
	assert.LessOrEqual(t, rec.Quantiles.P50, rec.Quantiles.P90)
	assert.NotEmpty(t, rec.Regime)
	assert.False(t, rec.ProducedAt.IsZero())

	// The point forecast is exactly the weighted component blend.
	w := rec.Weights
	want := w.Baseline*rec.Components.Baseline + w.Residual*rec.Components.Residual + w.Basis*rec.Components.Basis
	assert.InDelta(t, want, rec.Point, 1e-12)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

func TestEngineForecastRegimeFollowsSupply(t *testing.T) {
	table := syntheticTable(200, 13)
	e := testEngine(t)
	arts, err := e.Fit(table)
	require.NoError(t, err)

	obs := table[len(table)-1]
	obs.Features[FeatureDaysSupply] = 20

	rec, err := e.Forecast(arts, obs, obs.Date.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeCrisis, rec.Regime)
}

func TestEngineForecastRejectsIncompleteObservation(t *testing.T) {
	table := syntheticTable(200, 13)
	e := testEngine(t)
	arts, err := e.Fit(table)
	require.NoError(t, err)

	obs := models.Observation{
		Date:     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Features: map[string]float64{FeatureDaysSupply: 28},
	}
	_, err = e.Forecast(arts, obs, obs.Date.AddDate(0, 0, 7))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataContract))
}

func TestEngineArtifactReplayThroughJSON(t *testing.T) {
	table := syntheticTableWithSurprise(220, 47)
	e := testEngine(t)
	arts, err := e.Fit(table)
	require.NoError(t, err)

	obs := table[len(table)-1]
	target := obs.Date.AddDate(0, 0, 14)
	want, err := e.Forecast(arts, obs, target)
	require.NoError(t, err)

	// Persist and reload the artifact set, then forecast again. The
	// replayed record matches except for the produced-at stamp.
	b, err := json.Marshal(arts)
	require.NoError(t, err)
	var restored Artifacts
	require.NoError(t, json.Unmarshal(b, &restored))

	got, err := e.Forecast(restored, obs, target)
	require.NoError(t, err)
	assert.Equal(t, want.Point, got.Point)
	assert.Equal(t, want.Quantiles.P10, got.Quantiles.P10)
	assert.Equal(t, want.Quantiles.P50, got.Quantiles.P50)
	assert.Equal(t, want.Quantiles.P90, got.Quantiles.P90)
	assert.Equal(t, want.Regime, got.Regime)
	assert.Equal(t, want.Components, got.Components)
}

func TestNewEngineRejectsBadParams(t *testing.T) {
	_, err := NewEngine(EngineParams{Thresholds: RegimeThresholds{High: 10, Low: 20}})
	assert.Error(t, err)

	_, err = NewEngine(EngineParams{Quantiles: []float64{0.2, 0.8}})
	assert.Error(t, err)

	bad := DefaultWeightTable()
	bad[models.RegimeNormal] = models.EnsembleWeights{Baseline: 0.9, Residual: 0.9, Basis: 0}
	_, err = NewEngine(EngineParams{Weights: bad})
	assert.Error(t, err)
}
