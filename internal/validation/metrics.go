package validation

import (
	"fmt"
	"math"
	"sort"

	"FuelCast/internal/domain/models"
)

// nominalCoverage is the probability mass of the P10-P90 band.
const nominalCoverage = 0.80

// minCoverageRecords is the smallest subset on which an empirical
// coverage deviation is worth flagging.
const minCoverageRecords = 20

// Summarize aggregates fold records into the sweep summary: overall
// metrics plus the by-horizon and by-regime breakouts, with coverage
// findings for any scope whose empirical band coverage deviates from
// nominal by more than tol.
func Summarize(records []models.ValidationRecord, tol float64) models.ValidationSummary {
	summary := models.ValidationSummary{
		Overall:   computeMetrics(records),
		ByHorizon: make(map[int]models.MetricSet),
		ByRegime:  make(map[models.Regime]models.MetricSet),
		Records:   records,
	}

	byHorizon := make(map[int][]models.ValidationRecord)
	byRegime := make(map[models.Regime][]models.ValidationRecord)
	for _, r := range records {
		byHorizon[r.HorizonDays] = append(byHorizon[r.HorizonDays], r)
		byRegime[r.Regime] = append(byRegime[r.Regime], r)
	}
	for h, rs := range byHorizon {
		summary.ByHorizon[h] = computeMetrics(rs)
	}
	for reg, rs := range byRegime {
		summary.ByRegime[reg] = computeMetrics(rs)
	}

	summary.Findings = coverageFindings(summary, tol)
	return summary
}

func coverageFindings(s models.ValidationSummary, tol float64) []models.CoverageFinding {
	var findings []models.CoverageFinding
	check := func(scope string, m models.MetricSet) {
		if m.Records < minCoverageRecords {
			return
		}
		if math.Abs(m.Coverage-nominalCoverage) > tol {
			findings = append(findings, models.CoverageFinding{
				Scope:     scope,
				Empirical: m.Coverage,
				Nominal:   nominalCoverage,
				Records:   m.Records,
			})
		}
	}

	check("overall", s.Overall)
	horizons := make([]int, 0, len(s.ByHorizon))
	for h := range s.ByHorizon {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)
	for _, h := range horizons {
		check(fmt.Sprintf("horizon_%dd", h), s.ByHorizon[h])
	}
	regimes := make([]models.Regime, 0, len(s.ByRegime))
	for r := range s.ByRegime {
		regimes = append(regimes, r)
	}
	sort.Slice(regimes, func(i, j int) bool { return regimes[i] < regimes[j] })
	for _, r := range regimes {
		check("regime_"+string(r), s.ByRegime[r])
	}
	return findings
}

// computeMetrics returns RMSE, MAE, R² and band coverage over records.
// R² on fewer than two records, or on a constant actual series, is
// reported as zero rather than a NaN.
func computeMetrics(records []models.ValidationRecord) models.MetricSet {
	n := len(records)
	if n == 0 {
		return models.MetricSet{}
	}

	var sumSq, sumAbs, sumActual float64
	covered := 0
	for _, r := range records {
		err := r.Actual - r.Predicted
		sumSq += err * err
		sumAbs += math.Abs(err)
		sumActual += r.Actual
		if r.Covered() {
			covered++
		}
	}
	mean := sumActual / float64(n)

	var totSq float64
	for _, r := range records {
		d := r.Actual - mean
		totSq += d * d
	}
	r2 := 0.0
	if totSq > 0 {
		r2 = 1 - sumSq/totSq
	}

	return models.MetricSet{
		RMSE:     math.Sqrt(sumSq / float64(n)),
		MAE:      sumAbs / float64(n),
		R2:       r2,
		Coverage: float64(covered) / float64(n),
		Records:  n,
	}
}
