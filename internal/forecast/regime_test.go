package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"FuelCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regimeObs(daysSupply, crisisFlag float64) models.Observation {
	return models.Observation{
		Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Features: map[string]float64{
			FeatureDaysSupply: daysSupply,
			FeatureCrisisFlag: crisisFlag,
		},
	}
}

func TestClassifyByDaysSupply(t *testing.T) {
	c, err := NewClassifier(RegimeThresholds{High: 26, Low: 23})
	require.NoError(t, err)

	cases := []struct {
		daysSupply float64
		want       models.Regime
	}{
		{30, models.RegimeNormal},
		{26.01, models.RegimeNormal},
		{26, models.RegimeTight},
		{24, models.RegimeTight},
		{23.01, models.RegimeTight},
		{23, models.RegimeCrisis},
		{20, models.RegimeCrisis},
	}
	for _, tc := range cases {
		got, err := c.Classify(regimeObs(tc.daysSupply, 0))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "days_supply=%v", tc.daysSupply)
	}
}

func TestClassifyCrisisFlagOverride(t *testing.T) {
	c, err := NewClassifier(RegimeThresholds{High: 26, Low: 23})
	require.NoError(t, err)

	got, err := c.Classify(regimeObs(35, 1))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeCrisis, got)

	// A sub-threshold flag does not override.
	got, err = c.Classify(regimeObs(35, 0.4))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeNormal, got)
}

func TestClassifyMissingDaysSupply(t *testing.T) {
	c, err := NewClassifier(RegimeThresholds{High: 26, Low: 23})
	require.NoError(t, err)

	obs := models.Observation{
		Date:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Features: map[string]float64{FeatureCrisisFlag: 0},
	}
	_, err = c.Classify(obs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegimeUndefined))
}

func TestClassifyNaNDaysSupply(t *testing.T) {
	c, err := NewClassifier(RegimeThresholds{High: 26, Low: 23})
	require.NoError(t, err)

	_, err = c.Classify(regimeObs(math.NaN(), 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegimeUndefined))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, RegimeThresholds{High: 26, Low: 23}.Validate())
	assert.Error(t, RegimeThresholds{High: 23, Low: 23}.Validate())
	assert.Error(t, RegimeThresholds{High: 20, Low: 23}.Validate())
	assert.Error(t, RegimeThresholds{High: math.Inf(1), Low: 23}.Validate())

	_, err := NewClassifier(RegimeThresholds{High: 10, Low: 20})
	assert.Error(t, err)
}
