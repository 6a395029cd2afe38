package util

import (
	"strconv"
	"time"
)

// DayLayout is the canonical wire format for observation dates.
const DayLayout = "2006-01-02"

// ParseDay tries the day layout, RFC3339, and unix seconds. Returns (t, true) if any worked.
func ParseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// FormatDay renders a time in the canonical day layout.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// TruncateDay drops the time-of-day component in UTC.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
