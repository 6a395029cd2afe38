package models

// ForecastRequest selects the forecast horizon.
type ForecastRequest struct {
	HorizonDays int  `query:"horizon_days" default:"7" validate:"min=1,max=60"`
	Refresh     bool `query:"refresh"`
}

// ValidationRunRequest launches a walk-forward sweep.
type ValidationRunRequest struct {
	Async bool `query:"async" json:"async"`
}

// ValidationRunResponse acknowledges an accepted sweep.
type ValidationRunResponse struct {
	Status string `json:"status"`
}
