package utils

import (
	"math"
	"time"
)

// ResetTime truncates t to the given granularity: "minute", "hour" or "day".
// Day truncation keeps t's location so exchange-local dates stay intact.
func ResetTime(t time.Time, granularity string) time.Time {
	switch granularity {
	case "minute":
		return t.Truncate(time.Minute)
	case "hour":
		return t.Truncate(time.Hour)
	case "day":
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

// DaysBetween counts calendar days from a to b, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	a = ResetTime(a, "day")
	b = ResetTime(b.In(a.Location()), "day")
	return int(math.Round(b.Sub(a).Hours() / 24))
}
