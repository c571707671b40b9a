package domain

import (
	"fmt"
	"time"
)

// ComputeTripMetadata derives season, inclusive day count and a display date range.
// Dates are interpreted in UTC. The caller ensures end is not before start.
func ComputeTripMetadata(start, end time.Time) TripMetadata {
	start, end = start.UTC(), end.UTC()
	days := int(end.Sub(start)/(24*time.Hour)) + 1

	var rng string
	switch {
	case start.Year() != end.Year():
		rng = fmt.Sprintf("%s – %s", start.Format("Jan 2, 2006"), end.Format("Jan 2, 2006"))
	case start.Month() != end.Month():
		rng = fmt.Sprintf("%s – %s", start.Format("Jan 2"), end.Format("Jan 2"))
	default:
		rng = fmt.Sprintf("%s–%d", start.Format("Jan 2"), end.Day())
	}

	return TripMetadata{
		Season:    SeasonForMonth(start.Month()),
		DaysTotal: days,
		DateRange: rng,
	}
}

// SeasonForMonth maps a month to a northern-hemisphere season.
func SeasonForMonth(m time.Month) Season {
	switch {
	case m >= time.March && m <= time.May:
		return SeasonSpring
	case m >= time.June && m <= time.August:
		return SeasonSummer
	case m >= time.September && m <= time.November:
		return SeasonFall
	default:
		return SeasonWinter
	}
}
