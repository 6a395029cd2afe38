package usecase

import (
	"context"
	"time"

	"FuelCast/pkg/logger"
	"FuelCast/pkg/queue"
)

// ValidationSweepType is the queue message type that triggers a
// walk-forward sweep.
const ValidationSweepType = "validation_sweep"

// ValidationSweepPayload bounds one queued sweep.
type ValidationSweepPayload struct {
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ValidationSweepJob runs walk-forward sweeps off the request path.
// The API enqueues; a queue worker executes.
type ValidationSweepJob struct {
	svc     *ForecastService
	timeout time.Duration
	l       *logger.Logger
}

func NewValidationSweepJob(svc *ForecastService, timeout time.Duration, l *logger.Logger) *ValidationSweepJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ValidationSweepJob{svc: svc, timeout: timeout, l: l}
}

func (j *ValidationSweepJob) Name() string { return "validation-sweep" }
func (j *ValidationSweepJob) Type() string { return ValidationSweepType }

func (j *ValidationSweepJob) Handle(ctx context.Context, payload interface{}) error {
	timeout := j.timeout
	if p, err := queue.ParsePayload[ValidationSweepPayload](payload); err == nil && p.Timeout > 0 {
		timeout = p.Timeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	summary, err := j.svc.RunValidation(runCtx)
	if err != nil {
		j.l.Error("queued validation sweep failed", logger.Error(err))
		return err
	}
	j.l.Info("queued validation sweep finished",
		logger.Int("records", summary.Overall.Records),
		logger.Float64("rmse", summary.Overall.RMSE),
		logger.Float64("coverage", summary.Overall.Coverage),
		logger.Bool("partial", summary.Partial))
	return nil
}

var _ queue.Job = (*ValidationSweepJob)(nil)
