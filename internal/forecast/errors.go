package forecast

import "errors"

// Error taxonomy for the forecasting core. Structural and safety
// violations are fatal to the specific fit/predict call and always
// surface to the caller; statistical findings (coverage anomalies,
// no-signal artifacts) are reported as data, never as errors.
var (
	// ErrDataContract marks malformed input at a fit/predict boundary:
	// a missing or non-finite feature, duplicate or non-monotonic dates.
	ErrDataContract = errors.New("data contract violation")

	// ErrLeakageGuard marks a model input that can reconstruct the
	// target: the target itself, or a target-derived feature computed at
	// an insufficient lag. Never downgraded to a warning.
	ErrLeakageGuard = errors.New("leakage guard violation")

	// ErrSingularFit marks a degenerate regression system. Reachable only
	// through misconfiguration (zero regularization on collinear inputs);
	// the fit fails loudly instead of returning garbage coefficients.
	ErrSingularFit = errors.New("singular fit")

	// ErrRegimeUndefined marks a classification attempt without the
	// required supply-days input.
	ErrRegimeUndefined = errors.New("regime input missing")
)
