package repository

import (
	"context"
	"time"

	"FuelCast/internal/domain/models"
)

// FeatureStore reads and appends the model-ready feature table.
type FeatureStore interface {
	// Load returns observations ordered by date ascending, optionally
	// bounded to [from, to].
	Load(ctx context.Context, from, to time.Time) (models.FeatureTable, error)
	// Append inserts one validated observation row.
	Append(ctx context.Context, obs models.Observation) error
	Health(ctx context.Context) error
}

// ResultStore persists forecast records, fitted artifacts and
// validation outcomes.
type ResultStore interface {
	StoreForecast(ctx context.Context, rec models.ForecastRecord) error
	StoreArtifact(ctx context.Context, art models.ModelArtifact) error
	StoreValidation(ctx context.Context, recs []models.ValidationRecord) error
	LatestForecast(ctx context.Context) (models.ForecastRecord, bool, error)
}

// Publisher pushes produced forecast records to downstream consumers.
type Publisher interface {
	PublishForecast(ctx context.Context, rec models.ForecastRecord) error
	Close() error
}

// Metrics abstracts the prometheus recorder.
type Metrics interface {
	RecordFit(model string, took time.Duration)
	RecordForecast(source string, point float64)
	RecordError(kind string)
	RecordCoverage(scope string, value float64)
	FoldDone(horizonDays int, took time.Duration, failed bool)
}
