package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"FuelCast/internal/forecast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featureRowJSON(t *testing.T, date string, target float64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"date":   date,
		"target": target,
		"features": map[string]float64{
			"price_rbob":           2.3,
			"rbob_lag3":            2.28,
			"rbob_lag7":            2.25,
			"rbob_lag14":           2.21,
			"crack_spread":         0.45,
			"inventory_mbbl":       228,
			"utilization_pct":      0.91,
			"net_imports_kbd":      52,
			"days_supply":          27.5,
			"winter_blend_effect":  0,
			"days_since_oct1":      120,
			"basis_lag7":           0.31,
			"basis_lag14":          0.29,
			"inventory_surprise_z": -0.4,
			"crisis_flag":          0,
		},
	})
	require.NoError(t, err)
	return b
}

func TestFeaturesHandlerAppendsValidRow(t *testing.T) {
	store := &fakeFeatureStore{}
	metrics := newFakeMetrics()
	h := NewKafkaFeaturesHandler("fuelcast.features", store, metrics)
	assert.Equal(t, "fuelcast.features", h.Topic())

	err := h.Handle(context.Background(), featureRowJSON(t, "2023-04-12", 3.42))
	require.NoError(t, err)

	require.Len(t, store.appended, 1)
	obs := store.appended[0]
	assert.Equal(t, time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC), obs.Date)
	assert.Equal(t, 3.42, obs.Target)
	assert.Equal(t, 27.5, obs.Features["days_supply"])
	assert.Empty(t, metrics.errs)
}

func TestFeaturesHandlerRejectsMalformedJSON(t *testing.T) {
	store := &fakeFeatureStore{}
	metrics := newFakeMetrics()
	h := NewKafkaFeaturesHandler("fuelcast.features", store, metrics)

	err := h.Handle(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.Empty(t, store.appended)
	assert.Equal(t, 1, metrics.errs["consumer_unmarshal"])
}

func TestFeaturesHandlerRejectsBadDate(t *testing.T) {
	store := &fakeFeatureStore{}
	metrics := newFakeMetrics()
	h := NewKafkaFeaturesHandler("fuelcast.features", store, metrics)

	err := h.Handle(context.Background(), featureRowJSON(t, "12/04/2023", 3.42))
	require.Error(t, err)
	assert.True(t, errors.Is(err, forecast.ErrDataContract))
	assert.Equal(t, 1, metrics.errs["consumer_bad_date"])
}

func TestFeaturesHandlerRejectsIncompleteSchema(t *testing.T) {
	store := &fakeFeatureStore{}
	metrics := newFakeMetrics()
	h := NewKafkaFeaturesHandler("fuelcast.features", store, metrics)

	b, err := json.Marshal(map[string]interface{}{
		"date":     "2023-04-12",
		"target":   3.42,
		"features": map[string]float64{"price_rbob": 2.3},
	})
	require.NoError(t, err)

	err = h.Handle(context.Background(), b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, forecast.ErrDataContract))
	assert.Empty(t, store.appended)
	assert.Equal(t, 1, metrics.errs["consumer_contract"])
}
