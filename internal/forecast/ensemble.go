package forecast

import (
	"fmt"
	"math"
	"sort"

	"FuelCast/internal/domain/models"
)

const weightSumTolerance = 1e-9

// DefaultWeightTable is the per-regime blend applied when the config
// supplies none. Crisis tilts toward the inventory-shock model.
func DefaultWeightTable() map[models.Regime]models.EnsembleWeights {
	return map[models.Regime]models.EnsembleWeights{
		models.RegimeNormal: {Baseline: 0.5, Residual: 0.3, Basis: 0.2},
		models.RegimeTight:  {Baseline: 0.4, Residual: 0.35, Basis: 0.25},
		models.RegimeCrisis: {Baseline: 0.3, Residual: 0.3, Basis: 0.4},
	}
}

// Combiner blends the component forecasts with regime-specific weights.
// The weight table is validated once at construction and again on every
// combine, so a weight row that drifted out of normalization cannot
// produce a silently biased price.
type Combiner struct {
	weights map[models.Regime]models.EnsembleWeights
}

func NewCombiner(weights map[models.Regime]models.EnsembleWeights) (*Combiner, error) {
	if len(weights) == 0 {
		weights = DefaultWeightTable()
	}
	for _, regime := range []models.Regime{models.RegimeNormal, models.RegimeTight, models.RegimeCrisis} {
		w, ok := weights[regime]
		if !ok {
			return nil, fmt.Errorf("ensemble weights: regime %q has no row", regime)
		}
		if err := validateWeights(regime, w); err != nil {
			return nil, err
		}
	}
	return &Combiner{weights: weights}, nil
}

// Combine blends the three component predictions under the regime's
// weights.
func (c *Combiner) Combine(regime models.Regime, parts models.ComponentForecasts) (models.EnsemblePrediction, error) {
	w, ok := c.weights[regime]
	if !ok {
		return models.EnsemblePrediction{}, fmt.Errorf("%w: no ensemble weights for regime %q", ErrRegimeUndefined, regime)
	}
	if err := validateWeights(regime, w); err != nil {
		return models.EnsemblePrediction{}, err
	}
	return models.EnsemblePrediction{
		Regime:     regime,
		Weights:    w,
		Components: parts,
		Point:      w.Baseline*parts.Baseline + w.Residual*parts.Residual + w.Basis*parts.Basis,
	}, nil
}

// WeightsFor exposes the row applied in a regime, for the API layer.
func (c *Combiner) WeightsFor(regime models.Regime) (models.EnsembleWeights, bool) {
	w, ok := c.weights[regime]
	return w, ok
}

// Regimes lists the configured regimes in a stable order.
func (c *Combiner) Regimes() []models.Regime {
	out := make([]models.Regime, 0, len(c.weights))
	for r := range c.weights {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func validateWeights(regime models.Regime, w models.EnsembleWeights) error {
	for _, v := range []float64{w.Baseline, w.Residual, w.Basis} {
		if !isFinite(v) || v < 0 {
			return fmt.Errorf("ensemble weights for %q must be finite and non-negative, got %+v", regime, w)
		}
	}
	if math.Abs(w.Sum()-1.0) > weightSumTolerance {
		return fmt.Errorf("ensemble weights for %q sum to %v, want 1.0", regime, w.Sum())
	}
	return nil
}
