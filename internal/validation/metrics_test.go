package validation

import (
	"testing"
	"time"

	"FuelCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(day, horizon int, actual, predicted, p10, p90 float64, regime models.Regime) models.ValidationRecord {
	target := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
	return models.ValidationRecord{
		ForecastDate: target.AddDate(0, 0, -horizon),
		HorizonDays:  horizon,
		TargetDate:   target,
		Predicted:    predicted,
		Actual:       actual,
		Regime:       regime,
		P10:          p10,
		P50:          predicted,
		P90:          p90,
	}
}

func TestComputeMetricsKnownValues(t *testing.T) {
	records := []models.ValidationRecord{
		record(0, 7, 3.0, 3.0, 2.5, 3.5, models.RegimeNormal), // err 0, covered
		record(1, 7, 3.4, 3.0, 2.5, 3.2, models.RegimeNormal), // err 0.4, not covered
	}
	m := computeMetrics(records)
	assert.Equal(t, 2, m.Records)
	assert.InDelta(t, 0.2, m.MAE, 1e-9)
	assert.InDelta(t, 0.4/1.4142135623730951, m.RMSE, 1e-9)
	assert.InDelta(t, 0.5, m.Coverage, 1e-9)
}

func TestComputeMetricsConstantActuals(t *testing.T) {
	records := []models.ValidationRecord{
		record(0, 7, 3.0, 2.9, 2.5, 3.5, models.RegimeNormal),
		record(1, 7, 3.0, 3.1, 2.5, 3.5, models.RegimeNormal),
	}
	m := computeMetrics(records)
	assert.Equal(t, 0.0, m.R2)
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := computeMetrics(nil)
	assert.Equal(t, models.MetricSet{}, m)
}

func TestSummarizeBreakouts(t *testing.T) {
	var records []models.ValidationRecord
	for i := 0; i < 10; i++ {
		records = append(records, record(i, 7, 3.0, 3.0, 2.5, 3.5, models.RegimeNormal))
		records = append(records, record(i, 3, 3.0, 3.1, 2.5, 3.5, models.RegimeTight))
	}

	s := Summarize(records, 0.15)
	assert.Equal(t, 20, s.Overall.Records)
	require.Contains(t, s.ByHorizon, 7)
	require.Contains(t, s.ByHorizon, 3)
	assert.Equal(t, 10, s.ByHorizon[7].Records)
	require.Contains(t, s.ByRegime, models.RegimeNormal)
	require.Contains(t, s.ByRegime, models.RegimeTight)
}

func TestSummarizeCoverageFinding(t *testing.T) {
	// 20 records, all covered: empirical 1.0 vs nominal 0.80 exceeds the
	// 0.15 tolerance on the overall scope.
	var records []models.ValidationRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(i, 7, 3.0, 3.0, 2.5, 3.5, models.RegimeNormal))
	}

	s := Summarize(records, 0.15)
	require.NotEmpty(t, s.Findings)
	assert.Equal(t, "overall", s.Findings[0].Scope)
	assert.InDelta(t, 1.0, s.Findings[0].Empirical, 1e-9)
	assert.InDelta(t, 0.80, s.Findings[0].Nominal, 1e-9)
}

func TestSummarizeNoFindingOnSmallScope(t *testing.T) {
	// Under 20 records no scope is flagged, however badly it deviates.
	var records []models.ValidationRecord
	for i := 0; i < 10; i++ {
		records = append(records, record(i, 7, 5.0, 3.0, 2.5, 3.5, models.RegimeNormal))
	}

	s := Summarize(records, 0.15)
	assert.Empty(t, s.Findings)
}

func TestSummarizeWithinToleranceNoFinding(t *testing.T) {
	// 80% empirical coverage matches nominal exactly.
	var records []models.ValidationRecord
	for i := 0; i < 20; i++ {
		if i < 16 {
			records = append(records, record(i, 7, 3.0, 3.0, 2.5, 3.5, models.RegimeNormal))
		} else {
			records = append(records, record(i, 7, 4.0, 3.0, 2.5, 3.5, models.RegimeNormal))
		}
	}

	s := Summarize(records, 0.15)
	assert.Empty(t, s.Findings)
}
