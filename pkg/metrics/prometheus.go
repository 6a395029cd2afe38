package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fitsTotal       *prometheus.CounterVec
	fitDuration     *prometheus.HistogramVec
	foldsTotal      *prometheus.CounterVec
	foldDuration    *prometheus.HistogramVec
	forecastsServed *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastForecast    prometheus.Gauge
	coverage        *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelcast_model_fits_total",
				Help: "Total number of model fits performed",
			},
			[]string{"model"},
		),
		fitDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuelcast_model_fit_duration_seconds",
				Help:    "Duration of individual model fits in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		foldsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelcast_validation_folds_total",
				Help: "Total number of walk-forward validation folds run",
			},
			[]string{"horizon_days", "outcome"},
		),
		foldDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuelcast_validation_fold_duration_seconds",
				Help:    "Duration of walk-forward folds in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"horizon_days"},
		),
		forecastsServed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelcast_forecasts_served_total",
				Help: "Total number of forecast records produced",
			},
			[]string{"source"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastForecast: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fuelcast_last_point_forecast",
				Help: "Most recent ensemble point forecast",
			},
		),
		coverage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelcast_interval_coverage",
				Help: "Empirical quantile band coverage from the last validation sweep",
			},
			[]string{"scope"},
		),
	}
}

// RecordFit records one completed model fit.
func (r *Recorder) RecordFit(model string, took time.Duration) {
	r.fitsTotal.WithLabelValues(model).Inc()
	r.fitDuration.WithLabelValues(model).Observe(took.Seconds())
}

// FoldDone records a walk-forward fold outcome.
func (r *Recorder) FoldDone(horizonDays int, took time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	h := strconv.Itoa(horizonDays)
	r.foldsTotal.WithLabelValues(h, outcome).Inc()
	r.foldDuration.WithLabelValues(h).Observe(took.Seconds())
}

// RecordForecast records a produced forecast and its point value.
func (r *Recorder) RecordForecast(source string, point float64) {
	r.forecastsServed.WithLabelValues(source).Inc()
	r.lastForecast.Set(point)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordCoverage records an empirical coverage value per scope.
func (r *Recorder) RecordCoverage(scope string, value float64) {
	r.coverage.WithLabelValues(scope).Set(value)
}
