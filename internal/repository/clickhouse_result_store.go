package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"FuelCast/internal/domain/models"
	pkgch "FuelCast/pkg/clickhouse"
	applogger "FuelCast/pkg/logger"
)

const (
	forecastTable   = "fuelcast.forecasts"
	artifactTable   = "fuelcast.model_artifacts"
	validationTable = "fuelcast.validation_records"
)

// CHResultStore persists forecasts, fitted artifacts and validation
// records to ClickHouse.
type CHResultStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHResultStore(ch *pkgch.Client) *CHResultStore {
	return &CHResultStore{db: ch.DB()}
}

func (s *CHResultStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHResultStore) StoreForecast(ctx context.Context, rec models.ForecastRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s
        (target_date, point, p10, p50, p90, regime,
         comp_baseline, comp_residual, comp_basis,
         w_baseline, w_residual, w_basis, produced_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, forecastTable)
	_, err := s.db.ExecContext(ctx, q,
		rec.TargetDate,
		rec.Point,
		rec.Quantiles.P10, rec.Quantiles.P50, rec.Quantiles.P90,
		string(rec.Regime),
		rec.Components.Baseline, rec.Components.Residual, rec.Components.Basis,
		rec.Weights.Baseline, rec.Weights.Residual, rec.Weights.Basis,
		rec.ProducedAt,
	)
	if err != nil {
		return fmt.Errorf("store forecast: %w", err)
	}
	return nil
}

func (s *CHResultStore) StoreArtifact(ctx context.Context, art models.ModelArtifact) error {
	body, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (model, fitted_at, train_start, train_end, train_rows, alpha, body) VALUES (?, ?, ?, ?, ?, ?, ?)", artifactTable)
	if _, err := s.db.ExecContext(ctx, q,
		art.Model, art.FittedAt, art.TrainStart, art.TrainEnd, art.TrainRows, art.Alpha, string(body),
	); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

// StoreValidation batch-inserts fold records. Chunked multi-row VALUES
// to bound statement size.
func (s *CHResultStore) StoreValidation(ctx context.Context, recs []models.ValidationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, r := range recs[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.ForecastDate, r.HorizonDays, r.TargetDate,
				r.Predicted, r.Actual, string(r.Regime),
				r.P10, r.P50, r.P90,
			)
		}
		q := fmt.Sprintf(`INSERT INTO %s
            (forecast_date, horizon_days, target_date, predicted, actual, regime, p10, p50, p90)
            VALUES %s`, validationTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store validation records: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("validation records stored",
			applogger.String("table", validationTable),
			applogger.Int("rows", len(recs)))
	}
	return nil
}

// LatestForecast returns the most recently produced record, if any.
func (s *CHResultStore) LatestForecast(ctx context.Context) (models.ForecastRecord, bool, error) {
	q := fmt.Sprintf(`
        SELECT target_date, point, p10, p50, p90, regime,
               comp_baseline, comp_residual, comp_basis,
               w_baseline, w_residual, w_basis, produced_at
        FROM %s
        ORDER BY produced_at DESC
        LIMIT 1
    `, forecastTable)
	var (
		rec    models.ForecastRecord
		regime string
	)
	err := s.db.QueryRowContext(ctx, q).Scan(
		&rec.TargetDate, &rec.Point,
		&rec.Quantiles.P10, &rec.Quantiles.P50, &rec.Quantiles.P90,
		&regime,
		&rec.Components.Baseline, &rec.Components.Residual, &rec.Components.Basis,
		&rec.Weights.Baseline, &rec.Weights.Residual, &rec.Weights.Basis,
		&rec.ProducedAt,
	)
	if err == sql.ErrNoRows {
		return models.ForecastRecord{}, false, nil
	}
	if err != nil {
		return models.ForecastRecord{}, false, fmt.Errorf("latest forecast: %w", err)
	}
	rec.Regime = models.Regime(regime)
	rec.Quantiles.Date = rec.TargetDate
	return rec, true, nil
}

// SchemaStatements returns the idempotent DDL for all result tables
// plus the feature table, applied at startup.
func SchemaStatements() []string {
	return []string{
		"CREATE DATABASE IF NOT EXISTS fuelcast",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            date Date, target Float64, features String
        ) ENGINE=ReplacingMergeTree ORDER BY date`, featureTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            target_date Date, point Float64,
            p10 Float64, p50 Float64, p90 Float64,
            regime String,
            comp_baseline Float64, comp_residual Float64, comp_basis Float64,
            w_baseline Float64, w_residual Float64, w_basis Float64,
            produced_at DateTime
        ) ENGINE=MergeTree ORDER BY (target_date, produced_at)`, forecastTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            model String, fitted_at DateTime,
            train_start Date, train_end Date, train_rows UInt32,
            alpha Float64, body String
        ) ENGINE=MergeTree ORDER BY (model, fitted_at)`, artifactTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            forecast_date Date, horizon_days UInt16, target_date Date,
            predicted Float64, actual Float64, regime String,
            p10 Float64, p50 Float64, p90 Float64
        ) ENGINE=MergeTree ORDER BY (forecast_date, horizon_days)`, validationTable),
	}
}
