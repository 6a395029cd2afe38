package forecast

import (
	"math/rand"
	"time"

	"FuelCast/internal/domain/models"
)

// testObservation builds one schema-complete row with pseudo-random but
// reproducible features. The caller sets the target afterwards.
func testObservation(day int, r *rand.Rand) models.Observation {
	rbob := 2.2 + 0.3*r.Float64()
	return models.Observation{
		Date: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Features: map[string]float64{
			FeaturePriceRBOB:      rbob,
			FeatureRBOBLag3:       rbob + 0.05*r.NormFloat64(),
			FeatureRBOBLag7:       rbob + 0.08*r.NormFloat64(),
			FeatureRBOBLag14:      rbob + 0.12*r.NormFloat64(),
			FeatureCrackSpread:    0.4 + 0.1*r.NormFloat64(),
			FeatureInventory:      230 + 10*r.NormFloat64(),
			FeatureUtilization:    0.9 + 0.02*r.NormFloat64(),
			FeatureNetImports:     50 + 5*r.NormFloat64(),
			FeatureDaysSupply:     28 + 2*r.NormFloat64(),
			FeatureWinterBlend:    0,
			FeatureDaysSinceOct1:  float64((day + 92) % 365),
			FeatureBasisLag7:      0.3 + 0.05*r.NormFloat64(),
			FeatureBasisLag14:     0.3 + 0.05*r.NormFloat64(),
			FeatureInventorySurpZ: r.NormFloat64(),
			FeatureCrisisFlag:     0,
		},
	}
}

// syntheticTable builds n daily rows with the target a fixed linear
// function of the lag-3 wholesale price.
func syntheticTable(n int, seed int64) models.FeatureTable {
	r := rand.New(rand.NewSource(seed))
	table := make(models.FeatureTable, n)
	for i := 0; i < n; i++ {
		obs := testObservation(i, r)
		obs.Target = 0.9*obs.Features[FeatureRBOBLag3] + 0.3
		table[i] = obs
	}
	return table
}

// syntheticTableWithSurprise adds a surprise-feature contribution that
// the pass-through baseline cannot explain.
func syntheticTableWithSurprise(n int, seed int64) models.FeatureTable {
	r := rand.New(rand.NewSource(seed))
	table := make(models.FeatureTable, n)
	for i := 0; i < n; i++ {
		obs := testObservation(i, r)
		obs.Target = 0.9*obs.Features[FeatureRBOBLag3] + 0.3 + 0.5*obs.Features[FeatureInventorySurpZ]
		table[i] = obs
	}
	return table
}
