package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"FuelCast/internal/domain/models"
	"FuelCast/internal/forecast"
	"FuelCast/pkg/logger"
)

// foldState tracks where a fold stopped when it failed, so the fold
// error names the phase.
type foldState int

const (
	foldNotStarted foldState = iota
	foldTrained
	foldPredicted
	foldRecorded
)

func (s foldState) String() string {
	switch s {
	case foldNotStarted:
		return "not_started"
	case foldTrained:
		return "trained"
	case foldPredicted:
		return "predicted"
	case foldRecorded:
		return "recorded"
	default:
		return "unknown"
	}
}

// fold is one walk-forward evaluation: train strictly before
// ForecastDate, predict the observation at TargetDate.
type fold struct {
	ForecastDate time.Time
	TargetDate   time.Time
	HorizonDays  int
	Year         int
}

// FoldError is a single failed fold. Fold failures are recorded and the
// sweep continues; only a hard guard violation aborts.
type FoldError struct {
	Fold  fold
	State foldState
	Err   error
}

func (e FoldError) Error() string {
	return fmt.Sprintf("fold %s h=%d (state %s): %v",
		e.Fold.ForecastDate.Format("2006-01-02"), e.Fold.HorizonDays, e.State, e.Err)
}

func (e FoldError) Unwrap() error { return e.Err }

// Observer receives per-fold outcomes, implemented by the prometheus
// recorder. A nil Observer is valid.
type Observer interface {
	FoldDone(horizonDays int, duration time.Duration, failed bool)
}

// Config bounds the sweep.
type Config struct {
	Years        []int   `yaml:"years"`
	HorizonsDays []int   `yaml:"horizons_days"`
	StrideDays   int     `yaml:"stride_days" default:"7"`
	MinTrainRows int     `yaml:"min_train_rows" default:"120"`
	Workers      int     `yaml:"workers" default:"4"`
	CoverageTol  float64 `yaml:"coverage_tolerance" default:"0.15"`
}

func (c Config) Validate() error {
	if len(c.Years) == 0 {
		return errors.New("validation config: years must not be empty")
	}
	if len(c.HorizonsDays) == 0 {
		return errors.New("validation config: horizons_days must not be empty")
	}
	for _, h := range c.HorizonsDays {
		if h < 1 {
			return fmt.Errorf("validation config: horizon %d must be positive", h)
		}
	}
	if c.StrideDays < 1 {
		return fmt.Errorf("validation config: stride_days %d must be positive", c.StrideDays)
	}
	if c.MinTrainRows < 2 {
		return fmt.Errorf("validation config: min_train_rows %d too small", c.MinTrainRows)
	}
	if c.Workers < 1 {
		return fmt.Errorf("validation config: workers %d must be positive", c.Workers)
	}
	if c.CoverageTol <= 0 || c.CoverageTol >= 1 {
		return fmt.Errorf("validation config: coverage_tolerance %v outside (0, 1)", c.CoverageTol)
	}
	return nil
}

// Harness runs walk-forward sweeps. Every fold re-fits all models from
// scratch on its own training window; folds share nothing mutable, so
// they run on a bounded worker pool.
type Harness struct {
	cfg      Config
	engine   *forecast.Engine
	log      *logger.Logger
	observer Observer
}

func NewHarness(cfg Config, engine *forecast.Engine, log *logger.Logger, observer Observer) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Harness{cfg: cfg, engine: engine, log: log, observer: observer}, nil
}

// Run executes the full sweep over table. Cancellation via ctx stops
// scheduling new folds and returns the records completed so far with
// Partial set; individual fold failures are logged and skipped. A guard
// violation (leakage or data contract) aborts the sweep immediately.
func (h *Harness) Run(ctx context.Context, table models.FeatureTable) (models.ValidationSummary, error) {
	started := time.Now().UTC()
	if err := forecast.ValidateTable(table); err != nil {
		return models.ValidationSummary{}, err
	}

	folds := h.enumerateFolds(table)
	h.log.Info("validation sweep starting",
		logger.Int("folds", len(folds)),
		logger.Int("workers", h.cfg.Workers),
		logger.Any("horizons_days", h.cfg.HorizonsDays))
	if len(folds) == 0 {
		return models.ValidationSummary{}, fmt.Errorf("%w: no folds match configured years and horizons", forecast.ErrDataContract)
	}

	var (
		mu       sync.Mutex
		records  []models.ValidationRecord
		foldErrs []FoldError
		fatalErr error
	)

	jobs := make(chan fold)
	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for w := 0; w < h.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				foldStart := time.Now()
				rec, state, err := h.runFold(table, f)
				if err != nil {
					if h.observer != nil {
						h.observer.FoldDone(f.HorizonDays, time.Since(foldStart), true)
					}
					if isFatal(err) {
						mu.Lock()
						if fatalErr == nil {
							fatalErr = FoldError{Fold: f, State: state, Err: err}
						}
						mu.Unlock()
						cancel()
						continue
					}
					h.log.Warn("fold failed",
						logger.String("forecast_date", f.ForecastDate.Format("2006-01-02")),
						logger.Int("horizon_days", f.HorizonDays),
						logger.String("state", state.String()),
						logger.Error(err))
					mu.Lock()
					foldErrs = append(foldErrs, FoldError{Fold: f, State: state, Err: err})
					mu.Unlock()
					continue
				}
				if h.observer != nil {
					h.observer.FoldDone(f.HorizonDays, time.Since(foldStart), false)
				}
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
			}
		}()
	}

	partial := false
dispatch:
	for _, f := range folds {
		select {
		case <-runCtx.Done():
			partial = true
			break dispatch
		case jobs <- f:
		}
	}
	close(jobs)
	wg.Wait()

	if fatalErr != nil {
		return models.ValidationSummary{}, fatalErr
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].ForecastDate.Equal(records[j].ForecastDate) {
			return records[i].ForecastDate.Before(records[j].ForecastDate)
		}
		return records[i].HorizonDays < records[j].HorizonDays
	})

	summary := Summarize(records, h.cfg.CoverageTol)
	summary.StartedAt = started
	summary.Duration = time.Since(started)
	summary.Partial = partial || ctx.Err() != nil

	h.log.Info("validation sweep finished",
		logger.Int("records", len(records)),
		logger.Int("fold_errors", len(foldErrs)),
		logger.Bool("partial", summary.Partial),
		logger.Duration("took", summary.Duration))
	return summary, nil
}

// enumerateFolds lists the (forecast date, horizon) pairs: every
// configured horizon crossed with observations whose date lands in a
// configured year, strided so neighboring folds do not retrain on
// near-identical windows.
func (h *Harness) enumerateFolds(table models.FeatureTable) []fold {
	years := make(map[int]bool, len(h.cfg.Years))
	for _, y := range h.cfg.Years {
		years[y] = true
	}
	byDate := make(map[string]int, len(table))
	for i, obs := range table {
		byDate[obs.Date.Format("2006-01-02")] = i
	}

	var folds []fold
	for _, horizon := range h.cfg.HorizonsDays {
		var lastTarget time.Time
		for _, obs := range table {
			if !years[obs.Date.Year()] {
				continue
			}
			if !lastTarget.IsZero() && obs.Date.Sub(lastTarget) < time.Duration(h.cfg.StrideDays)*24*time.Hour {
				continue
			}
			forecastDate := obs.Date.AddDate(0, 0, -horizon)
			fi, ok := byDate[forecastDate.Format("2006-01-02")]
			if !ok {
				continue
			}
			// the training window is everything strictly before the
			// forecast date, horizon-aligned, which drops the last
			// horizon rows
			if fi-horizon < h.cfg.MinTrainRows {
				continue
			}
			folds = append(folds, fold{
				ForecastDate: forecastDate,
				TargetDate:   obs.Date,
				HorizonDays:  horizon,
				Year:         obs.Date.Year(),
			})
			lastTarget = obs.Date
		}
	}
	return folds
}

// runFold trains on data strictly before the forecast date, with targets
// shifted forward by the fold horizon, then predicts off the forecast-date
// row and scores against the target realized horizon days later. Only
// information dated at or before the forecast date feeds the prediction.
func (h *Harness) runFold(table models.FeatureTable, f fold) (models.ValidationRecord, foldState, error) {
	state := foldNotStarted

	train := table.Before(f.ForecastDate).AlignTarget(f.HorizonDays)
	if len(train) < h.cfg.MinTrainRows {
		return models.ValidationRecord{}, state, fmt.Errorf("%w: %d aligned training rows before %s, need %d",
			forecast.ErrDataContract, len(train), f.ForecastDate.Format("2006-01-02"), h.cfg.MinTrainRows)
	}
	arts, err := h.engine.Fit(train)
	if err != nil {
		return models.ValidationRecord{}, state, err
	}
	state = foldTrained

	anchor, ok := table.At(f.ForecastDate)
	if !ok {
		return models.ValidationRecord{}, state, fmt.Errorf("%w: no observation at forecast date %s",
			forecast.ErrDataContract, f.ForecastDate.Format("2006-01-02"))
	}
	target, ok := table.At(f.TargetDate)
	if !ok {
		return models.ValidationRecord{}, state, fmt.Errorf("%w: no observation at target date %s",
			forecast.ErrDataContract, f.TargetDate.Format("2006-01-02"))
	}

	rec, err := h.engine.Forecast(arts, anchor, f.TargetDate)
	if err != nil {
		return models.ValidationRecord{}, state, err
	}
	state = foldPredicted

	out := models.ValidationRecord{
		ForecastDate: f.ForecastDate,
		HorizonDays:  f.HorizonDays,
		TargetDate:   f.TargetDate,
		Predicted:    rec.Point,
		Actual:       target.Target,
		Regime:       rec.Regime,
		P10:          rec.Quantiles.P10,
		P50:          rec.Quantiles.P50,
		P90:          rec.Quantiles.P90,
	}
	state = foldRecorded
	return out, state, nil
}

// isFatal reports whether a fold error must abort the whole sweep.
// Guard violations mean the input data or model wiring is wrong, so
// every other fold would be wrong the same way.
func isFatal(err error) bool {
	return errors.Is(err, forecast.ErrLeakageGuard)
}
