package forecast

import (
	"fmt"
	"math"

	"FuelCast/internal/domain/models"
)

// Feature names of the fixed upstream schema. The core consumes these;
// it never computes them.
const (
	FeaturePriceRBOB        = "price_rbob"
	FeatureRBOBLag3         = "rbob_lag3"
	FeatureRBOBLag7         = "rbob_lag7"
	FeatureRBOBLag14        = "rbob_lag14"
	FeatureCrackSpread      = "crack_spread"
	FeatureInventory        = "inventory_mbbl"
	FeatureUtilization      = "utilization_pct"
	FeatureNetImports       = "net_imports_kbd"
	FeatureDaysSupply       = "days_supply"
	FeatureWinterBlend      = "winter_blend_effect"
	FeatureDaysSinceOct1    = "days_since_oct1"
	FeatureBasisLag7        = "basis_lag7"
	FeatureBasisLag14       = "basis_lag14"
	FeatureInventorySurpZ   = "inventory_surprise_z"
	FeatureCrisisFlag       = "crisis_flag"
	FeatureRetailMargin     = "retail_margin" // zero-lag basis; forbidden as a model input
	FeatureTarget           = "target"
	FeatureTargetRetail     = "retail_price"
)

// RequiredSchema is the feature set every observation must carry to cross
// a fit/predict boundary.
var RequiredSchema = []string{
	FeaturePriceRBOB,
	FeatureRBOBLag3,
	FeatureRBOBLag7,
	FeatureRBOBLag14,
	FeatureCrackSpread,
	FeatureInventory,
	FeatureUtilization,
	FeatureNetImports,
	FeatureDaysSupply,
	FeatureWinterBlend,
	FeatureDaysSinceOct1,
	FeatureBasisLag7,
	FeatureBasisLag14,
	FeatureInventorySurpZ,
	FeatureCrisisFlag,
}

// targetDerivedLag maps every feature whose definition embeds the target
// to the lag (in observations) at which it was computed. Lag zero means
// the feature is algebraically the target minus something observable,
// which lets a model reconstruct the target exactly. The retail margin is
// listed explicitly: it is the documented historical defect that produced
// an R2 of 0.9999 through pure reconstruction.
var targetDerivedLag = map[string]int{
	FeatureTarget:       0,
	FeatureTargetRetail: 0,
	FeatureRetailMargin: 0,
	FeatureBasisLag7:    7,
	FeatureBasisLag14:   14,
}

// GuardFeatures rejects any model feature list containing the target, or
// a target-derived feature whose lag is below minLag. Models whose inputs
// must be entirely target-free pass minLag < 0.
func GuardFeatures(model string, features []string, minLag int) error {
	for _, f := range features {
		lag, derived := targetDerivedLag[f]
		if !derived {
			continue
		}
		if minLag < 0 {
			return fmt.Errorf("%w: model %s must not use target-derived feature %q", ErrLeakageGuard, model, f)
		}
		if lag < minLag {
			return fmt.Errorf("%w: model %s uses %q at lag %d, minimum lag is %d", ErrLeakageGuard, model, f, lag, minLag)
		}
	}
	return nil
}

// ValidateTable contract-checks a feature table against the required
// schema: non-empty, strictly increasing unique dates, every required
// feature present and finite, finite target. The first offending row
// fails the whole call.
func ValidateTable(table models.FeatureTable) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: empty feature table", ErrDataContract)
	}
	for i, obs := range table {
		if i > 0 && !table[i-1].Date.Before(obs.Date) {
			return fmt.Errorf("%w: dates not strictly increasing at row %d (%s after %s)",
				ErrDataContract, i, obs.Date.Format("2006-01-02"), table[i-1].Date.Format("2006-01-02"))
		}
		if err := ValidateObservation(obs); err != nil {
			return fmt.Errorf("row %d (%s): %w", i, obs.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

// ValidateObservation checks a single row against the schema contract.
func ValidateObservation(obs models.Observation) error {
	if obs.Date.IsZero() {
		return fmt.Errorf("%w: zero date", ErrDataContract)
	}
	if math.IsNaN(obs.Target) || math.IsInf(obs.Target, 0) {
		return fmt.Errorf("%w: non-finite target", ErrDataContract)
	}
	for _, name := range RequiredSchema {
		v, ok := obs.Features[name]
		if !ok {
			return fmt.Errorf("%w: missing feature %q", ErrDataContract, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite feature %q", ErrDataContract, name)
		}
	}
	return nil
}

// featureMatrix extracts the named columns into a dense design matrix and
// the target vector. The table must already be contract-validated.
func featureMatrix(table models.FeatureTable, features []string) ([][]float64, []float64) {
	X := make([][]float64, len(table))
	y := make([]float64, len(table))
	for i, obs := range table {
		row := make([]float64, len(features))
		for j, f := range features {
			row[j] = obs.Features[f]
		}
		X[i] = row
		y[i] = obs.Target
	}
	return X, y
}

// featureVector extracts one observation's values for the artifact's
// feature list, failing on any absent feature.
func featureVector(obs models.Observation, features []string) ([]float64, error) {
	row := make([]float64, len(features))
	for j, f := range features {
		v, ok := obs.Features[f]
		if !ok {
			return nil, fmt.Errorf("%w: missing feature %q", ErrDataContract, f)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite feature %q", ErrDataContract, f)
		}
		row[j] = v
	}
	return row, nil
}
