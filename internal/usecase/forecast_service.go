package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"FuelCast/internal/domain/models"
	domrepo "FuelCast/internal/domain/repository"
	"FuelCast/internal/forecast"
	icache "FuelCast/internal/service/cache"
	"FuelCast/internal/validation"
	applogger "FuelCast/pkg/logger"
)

const latestForecastCacheKey = "fuelcast:forecast:latest"

// ForecastBroadcaster pushes produced records to live subscribers.
type ForecastBroadcaster interface {
	BroadcastForecast(rec models.ForecastRecord)
}

// SweepLocker serializes validation sweeps. Satisfied by the redis cache
// service across instances and by the in-process memory cache otherwise.
type SweepLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

const sweepLockKey = "validation:sweep:lock"

// ForecastService composes the engine, the stores and the harness into
// the operations the API exposes.
type ForecastService struct {
	engine     *forecast.Engine
	harness    *validation.Harness
	features   domrepo.FeatureStore
	results    domrepo.ResultStore
	publisher  domrepo.Publisher
	metrics    domrepo.Metrics
	cache      icache.BytesCache
	cacheTTL   time.Duration
	broadcast  ForecastBroadcaster
	locker     SweepLocker
	lockTTL    time.Duration
	l          *applogger.Logger
	windowRows int

	mu          sync.RWMutex
	lastSummary *models.ValidationSummary
	sweeping    bool
}

type ForecastServiceOption func(*ForecastService)

func WithForecastCache(c icache.BytesCache, ttl time.Duration) ForecastServiceOption {
	return func(s *ForecastService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithBroadcaster(b ForecastBroadcaster) ForecastServiceOption {
	return func(s *ForecastService) { s.broadcast = b }
}

func WithSweepLock(locker SweepLocker, ttl time.Duration) ForecastServiceOption {
	return func(s *ForecastService) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithWindowRows(n int) ForecastServiceOption {
	return func(s *ForecastService) {
		if n > 0 {
			s.windowRows = n
		}
	}
}

func NewForecastService(
	engine *forecast.Engine,
	harness *validation.Harness,
	features domrepo.FeatureStore,
	results domrepo.ResultStore,
	publisher domrepo.Publisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...ForecastServiceOption,
) *ForecastService {
	s := &ForecastService{
		engine:     engine,
		harness:    harness,
		features:   features,
		results:    results,
		publisher:  publisher,
		metrics:    metrics,
		l:          l,
		cacheTTL:   5 * time.Minute,
		lockTTL:    15 * time.Minute,
		windowRows: 365,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Latest returns the current forecast record, producing a fresh one
// when the cache is cold. horizonDays picks the target date relative to
// the newest observation.
func (s *ForecastService) Latest(ctx context.Context, horizonDays int) (models.ForecastRecord, error) {
	if horizonDays < 1 {
		horizonDays = 7
	}
	if s.cache != nil {
		if b, ok, err := s.cache.GetBytes(ctx, cacheKey(horizonDays)); err == nil && ok {
			var rec models.ForecastRecord
			if err := json.Unmarshal(b, &rec); err == nil {
				s.metrics.RecordForecast("cache", rec.Point)
				return rec, nil
			}
		}
	}
	rec, err := s.Produce(ctx, horizonDays)
	if err != nil {
		return models.ForecastRecord{}, err
	}
	return rec, nil
}

// Produce fits on the newest window, with targets shifted forward by
// horizonDays so the models map today's features to the price horizonDays
// out, and emits one forecast record: persisted, published, cached and
// broadcast.
func (s *ForecastService) Produce(ctx context.Context, horizonDays int) (models.ForecastRecord, error) {
	if horizonDays < 1 {
		return models.ForecastRecord{}, fmt.Errorf("%w: horizon %d days", forecast.ErrDataContract, horizonDays)
	}
	table, err := s.features.Load(ctx, time.Time{}, time.Time{})
	if err != nil {
		s.metrics.RecordError("feature_load")
		return models.ForecastRecord{}, err
	}
	if len(table) == 0 {
		s.metrics.RecordError("feature_empty")
		return models.ForecastRecord{}, fmt.Errorf("%w: feature table is empty", forecast.ErrDataContract)
	}
	window := table
	if len(window) > s.windowRows {
		window = window[len(window)-s.windowRows:]
	}
	latest := table[len(table)-1]
	targetDate := latest.Date.AddDate(0, 0, horizonDays)

	train := window.AlignTarget(horizonDays)
	if len(train) == 0 {
		s.metrics.RecordError("feature_empty")
		return models.ForecastRecord{}, fmt.Errorf("%w: no rows with a realized target %d days out", forecast.ErrDataContract, horizonDays)
	}

	fitStart := time.Now()
	arts, err := s.engine.Fit(train)
	if err != nil {
		s.metrics.RecordError("fit")
		return models.ForecastRecord{}, err
	}
	s.metrics.RecordFit("ensemble", time.Since(fitStart))

	rec, err := s.engine.Forecast(arts, latest, targetDate)
	if err != nil {
		s.metrics.RecordError("forecast")
		return models.ForecastRecord{}, err
	}
	s.metrics.RecordForecast("engine", rec.Point)

	s.persist(ctx, rec, arts, horizonDays)

	if s.broadcast != nil {
		s.broadcast.BroadcastForecast(rec)
	}
	s.l.Info("forecast produced",
		applogger.String("target_date", rec.TargetDate.Format("2006-01-02")),
		applogger.String("regime", string(rec.Regime)),
		applogger.Float64("point", rec.Point),
		applogger.Int("train_rows", len(train)))
	return rec, nil
}

// persist stores and publishes the record. Failures here are logged
// and counted, never returned: the forecast itself is already valid.
func (s *ForecastService) persist(ctx context.Context, rec models.ForecastRecord, arts forecast.Artifacts, horizonDays int) {
	if err := s.results.StoreForecast(ctx, rec); err != nil {
		s.metrics.RecordError("result_store")
		s.l.Warn("forecast store failed", applogger.Error(err))
	}
	artList := []models.ModelArtifact{arts.Baseline, arts.Residual, arts.Basis}
	for _, art := range arts.Quantiles {
		artList = append(artList, art)
	}
	for _, art := range artList {
		if err := s.results.StoreArtifact(ctx, art); err != nil {
			s.metrics.RecordError("artifact_store")
			s.l.Warn("artifact store failed",
				applogger.String("model", art.Model), applogger.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishForecast(ctx, rec); err != nil {
			s.metrics.RecordError("publish")
			s.l.Warn("forecast publish failed", applogger.Error(err))
		}
	}
	if s.cache != nil {
		if b, err := json.Marshal(rec); err == nil {
			_ = s.cache.SetBytes(ctx, cacheKey(horizonDays), b, s.cacheTTL)
		}
	}
}

// RunValidation executes a walk-forward sweep over the whole feature
// table and stores the fold records. One sweep at a time.
func (s *ForecastService) RunValidation(ctx context.Context) (models.ValidationSummary, error) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		return models.ValidationSummary{}, fmt.Errorf("validation sweep already running")
	}
	s.sweeping = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL)
		if err != nil {
			s.metrics.RecordError("sweep_lock")
			return models.ValidationSummary{}, fmt.Errorf("sweep lock: %w", err)
		}
		if !ok {
			return models.ValidationSummary{}, fmt.Errorf("validation sweep already running on another instance")
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), sweepLockKey); err != nil {
				s.l.Warn("sweep unlock failed", applogger.Error(err))
			}
		}()
	}

	table, err := s.features.Load(ctx, time.Time{}, time.Time{})
	if err != nil {
		s.metrics.RecordError("feature_load")
		return models.ValidationSummary{}, err
	}
	summary, err := s.harness.Run(ctx, table)
	if err != nil {
		s.metrics.RecordError("validation")
		return models.ValidationSummary{}, err
	}

	if err := s.results.StoreValidation(ctx, summary.Records); err != nil {
		s.metrics.RecordError("validation_store")
		s.l.Warn("validation store failed", applogger.Error(err))
	}
	s.metrics.RecordCoverage("overall", summary.Overall.Coverage)
	for h, m := range summary.ByHorizon {
		s.metrics.RecordCoverage(fmt.Sprintf("horizon_%dd", h), m.Coverage)
	}

	s.mu.Lock()
	s.lastSummary = &summary
	s.mu.Unlock()
	return summary, nil
}

// Summary returns the most recent sweep result, if one has completed.
func (s *ForecastService) Summary() (models.ValidationSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSummary == nil {
		return models.ValidationSummary{}, false
	}
	return *s.lastSummary, true
}

// Sweeping reports whether a sweep is currently in flight.
func (s *ForecastService) Sweeping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sweeping
}

// Health reports feature store connectivity.
func (s *ForecastService) Health(ctx context.Context) error {
	return s.features.Health(ctx)
}

func cacheKey(horizonDays int) string {
	return fmt.Sprintf("%s:%dd", latestForecastCacheKey, horizonDays)
}
