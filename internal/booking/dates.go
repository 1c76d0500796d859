// Package booking holds the pure domain rules for reserving environments:
// date-range validation, next-available-date computation, and status
// projection. Nothing in this package performs I/O; callers supply the
// bookings and the clock.
package booking

import "time"

// DayLayout is the wire format for calendar days in API payloads.
const DayLayout = "2006-01-02"

// DayStart normalizes a timestamp to midnight in its own location.
// All range comparisons operate on whole days.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextDay returns midnight of the day after t.
func NextDay(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// ParseDay parses an API calendar day in UTC.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}
