package api

import (
	"errors"
	"net/http"

	models "FuelCast/internal/domain/models"
	"FuelCast/internal/forecast"
	"FuelCast/internal/usecase"
	xhttp "FuelCast/pkg/http"
	xlogger "FuelCast/pkg/logger"
	"FuelCast/pkg/queue"

	"github.com/labstack/echo/v4"
)

// ForecastEchoHandler exposes the forecast and validation endpoints.
type ForecastEchoHandler struct {
	logger *xlogger.Logger
	svc    *usecase.ForecastService
	queue  queue.QueueService
	hub    *ForecastHub
}

func NewForecastEchoHandler(logger *xlogger.Logger, svc *usecase.ForecastService) *ForecastEchoHandler {
	return &ForecastEchoHandler{logger: logger, svc: svc}
}

// SetQueue enables async sweep launches through the redis queue.
func (h *ForecastEchoHandler) SetQueue(q queue.QueueService) { h.queue = q }

// SetHub attaches the websocket hub for /ws/forecasts.
func (h *ForecastEchoHandler) SetHub(hub *ForecastHub) { h.hub = hub }

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.POST("/validation/run", h.RunValidation)
	g.GET("/validation/summary", h.ValidationSummary)
	if h.hub != nil {
		e.GET("/ws/forecasts", h.hub.Serve)
	}
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	if err := h.svc.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var (
		rec models.ForecastRecord
		err error
	)
	if req.Refresh {
		rec, err = h.svc.Produce(c.Request().Context(), req.HorizonDays)
	} else {
		rec, err = h.svc.Latest(c.Request().Context(), req.HorizonDays)
	}
	if err != nil {
		h.logger.Error("forecast usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, forecastAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, rec)
}

func (h *ForecastEchoHandler) RunValidation(c echo.Context) error {
	req := &models.ValidationRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.svc.Sweeping() {
		return xhttp.DataResponse(c, http.StatusConflict, models.ValidationRunResponse{Status: "already_running"})
	}

	if req.Async && h.queue != nil {
		if err := h.queue.PublishMessage(c.Request().Context(), usecase.ValidationSweepType, usecase.ValidationSweepPayload{}); err != nil {
			h.logger.Error("sweep enqueue error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.DataResponse(c, http.StatusAccepted, models.ValidationRunResponse{Status: "queued"})
	}

	summary, err := h.svc.RunValidation(c.Request().Context())
	if err != nil {
		h.logger.Error("validation usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, forecastAppError(err))
	}
	return xhttp.SuccessResponse(c, summary)
}

// forecastAppError maps model errors to application errors so structural
// violations surface as 4xx instead of a blanket 500.
func forecastAppError(err error) error {
	switch {
	case errors.Is(err, forecast.ErrDataContract):
		return xhttp.NewAppError("ERR_DATA_CONTRACT", "", err.Error(), http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, forecast.ErrRegimeUndefined):
		return xhttp.NewAppError("ERR_REGIME_UNDEFINED", "", err.Error(), http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, forecast.ErrSingularFit):
		return xhttp.NewAppError("ERR_SINGULAR_FIT", "", err.Error(), http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, forecast.ErrLeakageGuard):
		return xhttp.NewAppError("ERR_LEAKAGE_GUARD", "", err.Error(), http.StatusInternalServerError).WithError(err)
	default:
		return err
	}
}

func (h *ForecastEchoHandler) ValidationSummary(c echo.Context) error {
	summary, ok := h.svc.Summary()
	if !ok {
		return xhttp.NotFoundResponse(c, "no validation sweep has completed")
	}
	return xhttp.SuccessResponse(c, summary)
}

// Shutdown closes the websocket hub, if attached.
func (h *ForecastEchoHandler) Shutdown() {
	if h.hub != nil {
		h.hub.Close()
	}
}
