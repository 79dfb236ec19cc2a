package risk

import (
	"time"
)

const (
	DaysPerWeek          = 7
	OffsetDaysForNewYear = 1
	NewYearDay           = 1
	ThirdMondayOffset    = 2
	FourthThursdayOffset = 3
)

var marketZones = map[string]string{
	"US":     "America/New_York",
	"HK":     "Asia/Hong_Kong",
	"CN":     "Asia/Shanghai",
	"CRYPTO": "UTC",
}

// MarketLocation returns the exchange time zone, falling back to UTC when the
// zone database is unavailable.
func MarketLocation(market string) *time.Location {
	name, ok := marketZones[market]
	if !ok {
		name = marketZones["HK"]
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsTradingDay reports whether the exchange of market is open on the local date of t.
// Crypto never closes. The other markets close on weekends and on their fixed holidays.
func IsTradingDay(market string, t time.Time) bool {
	if market == "CRYPTO" {
		return true
	}

	local := t.In(MarketLocation(market))
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}

	switch market {
	case "US":
		return !isUSHoliday(local)
	case "CN":
		return !isDateAmong(local, fixedHolidays(local.Year(), cnFixed))
	default:
		// TODO: lunar new year, Ching Ming and Mid-Autumn closures need a lookup table per year.
		return !isDateAmong(local, fixedHolidays(local.Year(), hkFixed))
	}
}

type monthDay struct {
	month time.Month
	day   int
}

var hkFixed = []monthDay{
	{time.January, 1},
	{time.May, 1},
	{time.July, 1},
	{time.October, 1},
	{time.December, 25},
	{time.December, 26},
}

var cnFixed = []monthDay{
	{time.January, 1},
	{time.May, 1},
	{time.October, 1},
	{time.October, 2},
	{time.October, 3},
}

func fixedHolidays(year int, days []monthDay) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, md := range days {
		out = append(out, time.Date(year, md.month, md.day, 0, 0, 0, 0, time.UTC))
	}
	return out
}

func isUSHoliday(t time.Time) bool {
	year := t.Year()

	// New Year's Day, moved to Monday when it falls on a Sunday
	newYearsDay := time.Date(year, time.January, NewYearDay, 0, 0, 0, 0, time.UTC)
	if newYearsDay.Weekday() == time.Sunday {
		newYearsDay = newYearsDay.AddDate(0, 0, OffsetDaysForNewYear)
	}

	mlkDay := calculateSpecificMonday(year, time.January, ThirdMondayOffset)
	presidentsDay := calculateSpecificMonday(year, time.February, ThirdMondayOffset)

	// last Monday of May
	memorialDay := time.Date(year, time.May, 31, 0, 0, 0, 0, time.UTC)
	for memorialDay.Weekday() != time.Monday {
		memorialDay = memorialDay.AddDate(0, 0, -1)
	}

	independenceDay := time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)
	if independenceDay.Weekday() == time.Sunday {
		independenceDay = independenceDay.AddDate(0, 0, OffsetDaysForNewYear)
	}

	laborDay := calculateSpecificMonday(year, time.September, 0)
	thanksgivingDay := calculateSpecificThursday(year, time.November, FourthThursdayOffset)

	christmasDay := time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)
	if christmasDay.Weekday() == time.Sunday {
		christmasDay = christmasDay.AddDate(0, 0, OffsetDaysForNewYear)
	}

	holidays := []time.Time{
		newYearsDay,
		mlkDay,
		presidentsDay,
		memorialDay,
		independenceDay,
		laborDay,
		thanksgivingDay,
		christmasDay,
	}
	return isDateAmong(t, holidays)
}

// calculateSpecificMonday calculates the specific Monday of a month (like the third Monday).
func calculateSpecificMonday(year int, month time.Month, mondayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Monday-firstOfMonth.Weekday()+DaysPerWeek) % DaysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+mondayOffset*DaysPerWeek)
}

// calculateSpecificThursday calculates the specific Thursday of a month (like the fourth Thursday).
func calculateSpecificThursday(year int, month time.Month, thursdayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Thursday-firstOfMonth.Weekday()+DaysPerWeek) % DaysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+thursdayOffset*DaysPerWeek)
}

// isDateAmong compares calendar dates only.
func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
