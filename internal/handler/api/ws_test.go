package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FuelCast/internal/domain/models"
	xlogger "FuelCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hubTestLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func TestForecastHubBroadcastToSubscriber(t *testing.T) {
	hub := NewForecastHub(hubTestLogger(t))
	defer hub.Close()

	e := echo.New()
	e.GET("/ws/forecasts", hub.Serve)
	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/forecasts"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	rec := models.ForecastRecord{
		TargetDate: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		Point:      3.41,
		Regime:     models.RegimeNormal,
	}

	// The subscriber registers asynchronously after the upgrade.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastForecast(rec)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.ForecastRecord
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, rec.Point, got.Point)
	assert.Equal(t, rec.Regime, got.Regime)
	assert.True(t, rec.TargetDate.Equal(got.TargetDate))
}

func TestForecastHubDropsSlowClient(t *testing.T) {
	hub := NewForecastHub(hubTestLogger(t))

	// A client with no reader and no buffer cannot accept the frame.
	slow := &wsClient{send: make(chan []byte)}
	hub.mu.Lock()
	hub.clients[slow] = struct{}{}
	hub.mu.Unlock()

	hub.BroadcastForecast(models.ForecastRecord{Point: 1})

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Empty(t, hub.clients)
}

func TestForecastHubCloseDisconnects(t *testing.T) {
	hub := NewForecastHub(hubTestLogger(t))

	e := echo.New()
	e.GET("/ws/forecasts", hub.Serve)
	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/forecasts"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	// New connections after Close are refused at registration.
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn2.Close()
	require.NoError(t, conn2.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn2.ReadMessage()
	assert.Error(t, err)
}
