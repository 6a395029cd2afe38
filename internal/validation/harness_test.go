package validation

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"FuelCast/internal/domain/models"
	"FuelCast/internal/forecast"
	"FuelCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

// sweepTable builds daily rows from startYear-01-01 over n days with the
// target a fixed linear function of the lag-3 wholesale price plus noise.
func sweepTable(n int, startYear int, seed int64) models.FeatureTable {
	r := rand.New(rand.NewSource(seed))
	table := make(models.FeatureTable, n)
	start := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rbob := 2.2 + 0.3*r.Float64()
		obs := models.Observation{
			Date: start.AddDate(0, 0, i),
			Features: map[string]float64{
				"price_rbob":           rbob,
				"rbob_lag3":            rbob + 0.05*r.NormFloat64(),
				"rbob_lag7":            rbob + 0.08*r.NormFloat64(),
				"rbob_lag14":           rbob + 0.12*r.NormFloat64(),
				"crack_spread":         0.4 + 0.1*r.NormFloat64(),
				"inventory_mbbl":       230 + 10*r.NormFloat64(),
				"utilization_pct":      0.9 + 0.02*r.NormFloat64(),
				"net_imports_kbd":      50 + 5*r.NormFloat64(),
				"days_supply":          28 + 2*r.NormFloat64(),
				"winter_blend_effect":  0,
				"days_since_oct1":      float64((i + 92) % 365),
				"basis_lag7":           0.3 + 0.05*r.NormFloat64(),
				"basis_lag14":          0.3 + 0.05*r.NormFloat64(),
				"inventory_surprise_z": r.NormFloat64(),
				"crisis_flag":          0,
			},
		}
		obs.Target = 0.9*obs.Features["rbob_lag3"] + 0.3 + 0.05*r.NormFloat64()
		table[i] = obs
	}
	return table
}

func sweepConfig() Config {
	return Config{
		Years:        []int{2021},
		HorizonsDays: []int{7, 3},
		StrideDays:   14,
		MinTrainRows: 120,
		Workers:      2,
		CoverageTol:  0.15,
	}
}

func sweepEngine(t *testing.T, params forecast.EngineParams) *forecast.Engine {
	t.Helper()
	e, err := forecast.NewEngine(params)
	require.NoError(t, err)
	return e
}

// countingObserver records fold outcomes for assertion.
type countingObserver struct {
	mu     sync.Mutex
	done   int
	failed int
}

func (o *countingObserver) FoldDone(_ int, _ time.Duration, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done++
	if failed {
		o.failed++
	}
}

func TestHarnessRunFullSweep(t *testing.T) {
	table := sweepTable(730, 2020, 1)
	obs := &countingObserver{}
	h, err := NewHarness(sweepConfig(), sweepEngine(t, forecast.EngineParams{}), newTestLogger(t), obs)
	require.NoError(t, err)

	summary, err := h.Run(context.Background(), table)
	require.NoError(t, err)
	assert.False(t, summary.Partial)
	require.NotEmpty(t, summary.Records)
	assert.Equal(t, len(summary.Records), obs.done)
	assert.Zero(t, obs.failed)

	// Records come back chronologically ordered.
	for i := 1; i < len(summary.Records); i++ {
		assert.False(t, summary.Records[i].ForecastDate.Before(summary.Records[i-1].ForecastDate))
	}

	// Every record has a regime label and an ordered band.
	for _, r := range summary.Records {
		assert.NotEmpty(t, r.Regime)
		assert.LessOrEqual(t, r.P10, r.P50)
		assert.LessOrEqual(t, r.P50, r.P90)
		assert.Equal(t, r.TargetDate, r.ForecastDate.AddDate(0, 0, r.HorizonDays))
	}

	assert.Equal(t, summary.Overall.Records, len(summary.Records))
	assert.Contains(t, summary.ByHorizon, 7)
	assert.Contains(t, summary.ByHorizon, 3)
	assert.Greater(t, summary.Overall.RMSE, 0.0)
}

func TestHarnessStrideSpacesTargets(t *testing.T) {
	table := sweepTable(730, 2020, 2)
	cfg := sweepConfig()
	cfg.HorizonsDays = []int{7}
	h, err := NewHarness(cfg, sweepEngine(t, forecast.EngineParams{}), newTestLogger(t), nil)
	require.NoError(t, err)

	summary, err := h.Run(context.Background(), table)
	require.NoError(t, err)
	require.Greater(t, len(summary.Records), 1)

	for i := 1; i < len(summary.Records); i++ {
		gap := summary.Records[i].TargetDate.Sub(summary.Records[i-1].TargetDate)
		assert.GreaterOrEqual(t, gap, time.Duration(cfg.StrideDays)*24*time.Hour)
	}
}

func TestHarnessCancelledContextIsPartial(t *testing.T) {
	table := sweepTable(730, 2020, 3)
	h, err := NewHarness(sweepConfig(), sweepEngine(t, forecast.EngineParams{}), newTestLogger(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.Run(ctx, table)
	require.NoError(t, err)
	assert.True(t, summary.Partial)
}

// trendTable builds five years of daily rows where the target carries a
// slowly accelerating trend on top of its linear driver. A linear fit
// cannot extrapolate the acceleration, so fold error grows with how far
// past the training window the fold reaches.
func trendTable(n int) models.FeatureTable {
	r := rand.New(rand.NewSource(11))
	table := make(models.FeatureTable, n)
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	jit := func(base, scale float64) float64 { return base + scale*r.NormFloat64() }
	for i := 0; i < n; i++ {
		tf := float64(i)
		rbob := 2.0 + 0.0006*tf
		// Only one ramping driver per model set; the remaining columns
		// are independent noise so the fits stay well conditioned.
		obs := models.Observation{
			Date: start.AddDate(0, 0, i),
			Features: map[string]float64{
				"price_rbob":           rbob,
				"rbob_lag3":            jit(rbob, 1e-4),
				"rbob_lag7":            jit(2.4, 0.1),
				"rbob_lag14":           jit(2.4, 0.1),
				"crack_spread":         jit(0.4, 0.05),
				"inventory_mbbl":       jit(230, 2),
				"utilization_pct":      jit(0.9, 0.01),
				"net_imports_kbd":      jit(50, 2),
				"days_supply":          jit(28, 0.1),
				"winter_blend_effect":  0,
				"days_since_oct1":      jit(180, 5),
				"basis_lag7":           jit(0.3, 0.05),
				"basis_lag14":          jit(0.3, 0.05),
				"inventory_surprise_z": jit(0, 0.1),
				"crisis_flag":          0,
			},
		}
		obs.Target = 0.9*obs.Features["rbob_lag3"] + 0.3 + 5e-6*tf*tf
		table[i] = obs
	}
	return table
}

func TestHarnessRMSEShrinksWithHorizon(t *testing.T) {
	table := trendTable(1830)
	cfg := Config{
		Years:        []int{2020, 2021, 2022, 2023},
		HorizonsDays: []int{21, 14, 7, 3, 1},
		StrideDays:   60,
		MinTrainRows: 120,
		Workers:      4,
		CoverageTol:  0.99,
	}
	engine := sweepEngine(t, forecast.EngineParams{AlphaGrid: []float64{1e-6}})
	h, err := NewHarness(cfg, engine, newTestLogger(t), nil)
	require.NoError(t, err)

	summary, err := h.Run(context.Background(), table)
	require.NoError(t, err)
	assert.False(t, summary.Partial)

	for _, horizon := range cfg.HorizonsDays {
		require.Contains(t, summary.ByHorizon, horizon)
	}
	for i := 1; i < len(cfg.HorizonsDays); i++ {
		longer, shorter := cfg.HorizonsDays[i-1], cfg.HorizonsDays[i]
		assert.LessOrEqual(t, summary.ByHorizon[shorter].RMSE, summary.ByHorizon[longer].RMSE,
			"horizon %dd should not score worse than %dd", shorter, longer)
	}
}

func TestHarnessFoldErrorsDoNotAbort(t *testing.T) {
	table := sweepTable(730, 2020, 4)
	// Identical lag columns with a zero-only alpha grid make every fit
	// rank deficient; each fold fails, none aborts the sweep.
	for i := range table {
		table[i].Features["rbob_lag7"] = table[i].Features["rbob_lag3"]
		table[i].Features["rbob_lag14"] = table[i].Features["rbob_lag3"]
	}
	obs := &countingObserver{}
	engine := sweepEngine(t, forecast.EngineParams{AlphaGrid: []float64{0}})
	h, err := NewHarness(sweepConfig(), engine, newTestLogger(t), obs)
	require.NoError(t, err)

	summary, err := h.Run(context.Background(), table)
	require.NoError(t, err)
	assert.Empty(t, summary.Records)
	assert.False(t, summary.Partial)
	assert.Greater(t, obs.failed, 0)
}

func TestHarnessLeakageGuardAborts(t *testing.T) {
	table := sweepTable(730, 2020, 5)
	// A minimum basis lag above the schema's lag-7 feature makes every
	// basis fit a guard violation, which is fatal.
	engine := sweepEngine(t, forecast.EngineParams{MinBasisLag: 10})
	h, err := NewHarness(sweepConfig(), engine, newTestLogger(t), nil)
	require.NoError(t, err)

	_, err = h.Run(context.Background(), table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, forecast.ErrLeakageGuard))

	var fe FoldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "not_started", fe.State.String())
}

func TestHarnessRejectsInvalidTable(t *testing.T) {
	h, err := NewHarness(sweepConfig(), sweepEngine(t, forecast.EngineParams{}), newTestLogger(t), nil)
	require.NoError(t, err)

	_, err = h.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, forecast.ErrDataContract))
}

func TestHarnessNoMatchingFolds(t *testing.T) {
	table := sweepTable(200, 2020, 6)
	cfg := sweepConfig()
	cfg.Years = []int{1999}
	h, err := NewHarness(cfg, sweepEngine(t, forecast.EngineParams{}), newTestLogger(t), nil)
	require.NoError(t, err)

	_, err = h.Run(context.Background(), table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, forecast.ErrDataContract))
}

func TestConfigValidate(t *testing.T) {
	valid := sweepConfig()
	assert.NoError(t, valid.Validate())

	cases := []func(*Config){
		func(c *Config) { c.Years = nil },
		func(c *Config) { c.HorizonsDays = nil },
		func(c *Config) { c.HorizonsDays = []int{0} },
		func(c *Config) { c.StrideDays = 0 },
		func(c *Config) { c.MinTrainRows = 1 },
		func(c *Config) { c.Workers = 0 },
		func(c *Config) { c.CoverageTol = 0 },
		func(c *Config) { c.CoverageTol = 1 },
	}
	for i, mutate := range cases {
		c := sweepConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}
}

func TestHarnessFoldsUseOnlyDataKnownAtForecastTime(t *testing.T) {
	// Rows from June onward jump to a wildly different level. A fold
	// anchored before June must predict from the pre-June fit and the
	// pre-June anchor row, even when its target date lands in the
	// shifted period.
	table := sweepTable(400, 2021, 9)
	cutoff := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range table {
		if !table[i].Date.Before(cutoff) {
			table[i].Features["rbob_lag3"] = 1000
			table[i].Features["days_supply"] = 10
			table[i].Target = 900.3
		}
	}

	cfg := sweepConfig()
	cfg.HorizonsDays = []int{7}
	cfg.StrideDays = 1
	h, err := NewHarness(cfg, sweepEngine(t, forecast.EngineParams{}), newTestLogger(t), nil)
	require.NoError(t, err)

	summary, err := h.Run(context.Background(), table)
	require.NoError(t, err)

	checked := 0
	for _, r := range summary.Records {
		if !r.ForecastDate.Before(cutoff) || r.TargetDate.Before(cutoff) {
			continue
		}
		checked++
		assert.Less(t, r.Predicted, 10.0,
			"fold anchored %s predicts from data dated after its forecast date", r.ForecastDate.Format("2006-01-02"))
		assert.NotEqual(t, models.RegimeCrisis, r.Regime,
			"regime at forecast time classified from a later row")
	}
	require.NotZero(t, checked)
}
