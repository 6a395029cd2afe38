package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"FuelCast/internal/domain/models"
	pkgch "FuelCast/pkg/clickhouse"
	applogger "FuelCast/pkg/logger"
)

const featureTable = "fuelcast.feature_rows"

// CHFeatureStore implements FeatureStore backed by ClickHouse. Feature
// maps are stored as JSON strings so the row schema never changes when
// a feature is added.
type CHFeatureStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client) *CHFeatureStore {
	return &CHFeatureStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

// Load returns observations ordered by date ascending. Zero from/to
// leave that bound open.
func (s *CHFeatureStore) Load(ctx context.Context, from, to time.Time) (models.FeatureTable, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT date, target, features
        FROM %s
        WHERE (? = toDate('1970-01-01') OR date >= ?)
          AND (? = toDate('1970-01-01') OR date <= ?)
        ORDER BY date ASC
    `, featureTable)

	fromD, toD := sqlDate(from), sqlDate(to)
	rows, err := s.db.QueryContext(ctx, q, fromD, fromD, toD, toD)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load features query error",
				applogger.String("table", featureTable),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("load features: %w", err)
	}
	defer rows.Close()

	out := make(models.FeatureTable, 0, 1024)
	for rows.Next() {
		var (
			date     time.Time
			target   float64
			featJSON string
		)
		if err := rows.Scan(&date, &target, &featJSON); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		features := make(map[string]float64)
		if err := json.Unmarshal([]byte(featJSON), &features); err != nil {
			return nil, fmt.Errorf("decode features at %s: %w", date.Format("2006-01-02"), err)
		}
		out = append(out, models.Observation{Date: date, Target: target, Features: features})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse load features ok",
			applogger.String("table", featureTable),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// Append inserts one observation row.
func (s *CHFeatureStore) Append(ctx context.Context, obs models.Observation) error {
	featJSON, err := json.Marshal(obs.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (date, target, features) VALUES (?, ?, ?)", featureTable)
	if _, err := s.db.ExecContext(ctx, q, obs.Date, obs.Target, string(featJSON)); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append feature row error",
				applogger.String("table", featureTable),
				applogger.String("date", obs.Date.Format("2006-01-02")),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append feature row: %w", err)
	}
	return nil
}

func (s *CHFeatureStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// sqlDate maps zero times to the epoch sentinel used in the query.
func sqlDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}
