package forecast

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTableEmpty(t *testing.T) {
	err := ValidateTable(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataContract))
}

func TestValidateTableNonMonotonicDates(t *testing.T) {
	table := syntheticTable(5, 1)
	table[2].Date = table[1].Date

	err := ValidateTable(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataContract))
	assert.Contains(t, err.Error(), "strictly increasing")
}

func TestValidateObservationMissingFeature(t *testing.T) {
	table := syntheticTable(1, 1)
	obs := table[0]
	delete(obs.Features, FeatureDaysSupply)

	err := ValidateObservation(obs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataContract))
	assert.Contains(t, err.Error(), FeatureDaysSupply)
}

func TestValidateObservationNonFiniteTarget(t *testing.T) {
	table := syntheticTable(1, 1)
	obs := table[0]
	obs.Target = math.NaN()

	err := ValidateObservation(obs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataContract))
}

func TestGuardFeaturesRejectsTarget(t *testing.T) {
	err := GuardFeatures("m", []string{FeatureRBOBLag3, FeatureTargetRetail}, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeakageGuard))
}

func TestGuardFeaturesRejectsZeroLagBasis(t *testing.T) {
	err := GuardFeatures("m", []string{FeatureRetailMargin}, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeakageGuard))
}

func TestGuardFeaturesAcceptsLaggedBasisAtMinimum(t *testing.T) {
	err := GuardFeatures("m", []string{FeatureBasisLag7, FeatureBasisLag14}, 7)
	assert.NoError(t, err)
}

func TestGuardFeaturesLagBelowMinimum(t *testing.T) {
	err := GuardFeatures("m", []string{FeatureBasisLag7}, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeakageGuard))
}
