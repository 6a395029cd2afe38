package forecast

import (
	"fmt"
	"math"

	"FuelCast/internal/domain/models"
)

// RegimeThresholds holds the days-of-supply cut points separating the
// three market regimes. High must exceed Low.
type RegimeThresholds struct {
	High float64 `yaml:"high" default:"26"`
	Low  float64 `yaml:"low" default:"23"`
}

func (t RegimeThresholds) Validate() error {
	if !isFinite(t.High) || !isFinite(t.Low) {
		return fmt.Errorf("regime thresholds must be finite, got high=%v low=%v", t.High, t.Low)
	}
	if t.High <= t.Low {
		return fmt.Errorf("regime threshold high (%v) must exceed low (%v)", t.High, t.Low)
	}
	return nil
}

// Classifier maps an observation to its market regime from the
// days-of-supply level, with an explicit crisis override flag.
type Classifier struct {
	thresholds RegimeThresholds
}

func NewClassifier(thresholds RegimeThresholds) (*Classifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: thresholds}, nil
}

// Classify returns the regime for obs. Days of supply above High is
// Normal, above Low is Tight, at or below Low is Crisis. A set crisis
// flag forces Crisis regardless of the supply level. A missing or
// non-finite days-of-supply feature is ErrRegimeUndefined: every fold
// and forecast carries a regime label, so classification cannot
// silently default.
func (c *Classifier) Classify(obs models.Observation) (models.Regime, error) {
	if flag, ok := obs.Feature(FeatureCrisisFlag); ok && flag >= 0.5 {
		return models.RegimeCrisis, nil
	}
	ds, ok := obs.Feature(FeatureDaysSupply)
	if !ok || !isFinite(ds) {
		return "", fmt.Errorf("%w: observation %s has no usable %s",
			ErrRegimeUndefined, obs.Date.Format("2006-01-02"), FeatureDaysSupply)
	}
	switch {
	case ds > c.thresholds.High:
		return models.RegimeNormal, nil
	case ds > c.thresholds.Low:
		return models.RegimeTight, nil
	default:
		return models.RegimeCrisis, nil
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
