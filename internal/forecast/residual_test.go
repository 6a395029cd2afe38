package forecast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResidualNoSignalWhenBaselineExplainsTarget(t *testing.T) {
	table := syntheticTable(200, 11)
	baseline := NewBaselineModel(nil, 0)
	baseArt, err := baseline.Fit(table)
	require.NoError(t, err)

	m := NewResidualModel(baseline, baseArt, nil, 0)
	art, err := m.Fit(table)
	require.NoError(t, err)

	// The baseline already captured the generating relation, so the
	// stage-2 coefficients shrink to nothing.
	assert.True(t, art.NoSignal)
	assert.Equal(t, "residual", art.Model)
	assert.Equal(t, SurpriseFeatures, art.Features)
}

func TestResidualPicksUpSurpriseSignal(t *testing.T) {
	table := syntheticTableWithSurprise(200, 11)
	baseline := NewBaselineModel(nil, 0)
	baseArt, err := baseline.Fit(table)
	require.NoError(t, err)

	m := NewResidualModel(baseline, baseArt, nil, 0)
	art, err := m.Fit(table)
	require.NoError(t, err)
	assert.False(t, art.NoSignal)

	// The surprise correction moves predictions toward the target.
	var sseBase, sseResid float64
	for _, obs := range table {
		bp, err := baseline.Predict(baseArt, obs)
		require.NoError(t, err)
		rp, err := m.Predict(art, obs)
		require.NoError(t, err)
		sseBase += (obs.Target - bp) * (obs.Target - bp)
		sseResid += (obs.Target - rp) * (obs.Target - rp)
	}
	assert.Less(t, sseResid, sseBase)
}

func TestResidualRejectsTargetDerivedExtraFeature(t *testing.T) {
	table := syntheticTable(120, 1)
	baseline := NewBaselineModel(nil, 0)
	baseArt, err := baseline.Fit(table)
	require.NoError(t, err)

	m := NewResidualModel(baseline, baseArt, nil, 0).WithExtraFeatures(FeatureTargetRetail)
	_, err = m.Fit(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeakageGuard))
}

func TestResidualRejectsRetailMarginExtraFeature(t *testing.T) {
	table := syntheticTable(120, 1)
	baseline := NewBaselineModel(nil, 0)
	baseArt, err := baseline.Fit(table)
	require.NoError(t, err)

	m := NewResidualModel(baseline, baseArt, nil, 0).WithExtraFeatures(FeatureRetailMargin)
	_, err = m.Fit(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeakageGuard))
}

func TestResidualPredictFromPersistedArtifacts(t *testing.T) {
	table := syntheticTableWithSurprise(150, 23)
	baseline := NewBaselineModel(nil, 0)
	baseArt, err := baseline.Fit(table)
	require.NoError(t, err)
	m := NewResidualModel(baseline, baseArt, nil, 0)
	art, err := m.Fit(table)
	require.NoError(t, err)

	obs := table[len(table)-1]
	want, err := m.Predict(art, obs)
	require.NoError(t, err)

	// Replay from the artifacts alone must agree with the live model.
	got, err := residualPredict(baseArt, art, obs)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
