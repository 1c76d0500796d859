package booking

import (
	"errors"
	"time"

	"github.com/superorange0707/environment-booking/internal/model"
)

// Rejection reasons returned by ValidateRange, checked in order. Callers
// map these to API reason codes with errors.Is.
var (
	ErrMissingField  = errors.New("start and end dates are required")
	ErrPastDate      = errors.New("start date is in the past")
	ErrInvertedRange = errors.New("end date is before start date")
	ErrOverlap       = errors.New("range overlaps an existing booking")
)

// Range is a candidate reservation over inclusive whole days.
type Range struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two inclusive day ranges share at least one
// day. Both ranges are compared on day boundaries; a booking ending on
// the day another starts is an overlap.
func (r Range) Overlaps(o Range) bool {
	return !DayStart(r.Start).After(DayStart(o.End)) &&
		!DayStart(o.Start).After(DayStart(r.End))
}

// ValidateRange decides whether a candidate range may be booked on the
// given environment. Checks run in a fixed order and the first failure
// wins: missing fields, then past start, then inverted range, then
// overlap against existing active bookings. Cancelled bookings never
// block a new reservation.
func ValidateRange(candidate Range, environmentID int64, existing []model.Booking, today time.Time) error {
	if candidate.Start.IsZero() || candidate.End.IsZero() {
		return ErrMissingField
	}

	start := DayStart(candidate.Start)
	end := DayStart(candidate.End)

	if start.Before(DayStart(today)) {
		return ErrPastDate
	}
	if end.Before(start) {
		return ErrInvertedRange
	}

	for _, b := range existing {
		if !b.Active() || b.EnvironmentID != environmentID {
			continue
		}
		if candidate.Overlaps(Range{Start: b.StartDate, End: b.EndDate}) {
			return ErrOverlap
		}
	}

	return nil
}

// CurrentBooking returns the active booking whose range spans now, or
// nil if the environment is free at this instant. A booking spans now
// from midnight of its start day until midnight after its end day.
func CurrentBooking(bookings []model.Booking, now time.Time) *model.Booking {
	for i := range bookings {
		b := &bookings[i]
		if !b.Active() {
			continue
		}
		if !DayStart(b.StartDate).After(now) && now.Before(NextDay(b.EndDate)) {
			return b
		}
	}

	return nil
}
