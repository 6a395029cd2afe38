package models

import "time"

// Observation is one row of the model-ready feature table: a date, the
// retail price target, and the fixed-schema feature map supplied by the
// upstream data layer. The core never computes upstream features; it only
// validates and consumes them.
type Observation struct {
	Date     time.Time          `json:"date"`
	Target   float64            `json:"target"`
	Features map[string]float64 `json:"features"`
}

// Feature returns the named feature and whether it is present.
func (o Observation) Feature(name string) (float64, bool) {
	v, ok := o.Features[name]
	return v, ok
}

// FeatureTable is a chronologically ordered, read-only sequence of
// observations. Ordering and uniqueness of dates are contract-checked at
// every fit/predict boundary, not assumed.
type FeatureTable []Observation

// Before returns the table restricted to rows strictly before cutoff.
// The returned slice aliases the original backing array; callers treat
// tables as read-only.
func (t FeatureTable) Before(cutoff time.Time) FeatureTable {
	for i, o := range t {
		if !o.Date.Before(cutoff) {
			return t[:i]
		}
	}
	return t
}

// At returns the observation dated day, if present.
func (t FeatureTable) At(day time.Time) (Observation, bool) {
	key := day.Format("2006-01-02")
	for _, o := range t {
		if o.Date.Format("2006-01-02") == key {
			return o, true
		}
	}
	return Observation{}, false
}

// AlignTarget pairs each row's features with the target realized
// horizonDays later, dropping rows with no matching future row. A
// horizon-specific fit trains on the aligned table so that the model
// maps features at t to the price at t+horizonDays.
func (t FeatureTable) AlignTarget(horizonDays int) FeatureTable {
	byDate := make(map[string]int, len(t))
	for i, o := range t {
		byDate[o.Date.Format("2006-01-02")] = i
	}
	out := make(FeatureTable, 0, len(t))
	for _, o := range t {
		j, ok := byDate[o.Date.AddDate(0, 0, horizonDays).Format("2006-01-02")]
		if !ok {
			continue
		}
		aligned := o
		aligned.Target = t[j].Target
		out = append(out, aligned)
	}
	return out
}

// Span returns the first and last observation dates, or zero times for an
// empty table.
func (t FeatureTable) Span() (time.Time, time.Time) {
	if len(t) == 0 {
		return time.Time{}, time.Time{}
	}
	return t[0].Date, t[len(t)-1].Date
}
