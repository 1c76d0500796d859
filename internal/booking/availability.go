package booking

import (
	"sort"
	"time"

	"github.com/superorange0707/environment-booking/internal/model"
)

// NextAvailableDate returns the earliest day from today onward on which
// a new booking could start, given the environment's bookings. Active
// bookings that end before today are ignored; the remainder are scanned
// in start order and any booking that begins on or before the running
// candidate pushes the candidate to the day after that booking ends.
// Consecutive bookings merge into one busy streak. With no relevant
// bookings the answer is today.
func NextAvailableDate(bookings []model.Booking, today time.Time) time.Time {
	day := DayStart(today)

	relevant := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if !b.Active() {
			continue
		}
		if DayStart(b.EndDate).Before(day) {
			continue
		}
		relevant = append(relevant, b)
	}

	sort.Slice(relevant, func(i, j int) bool {
		return DayStart(relevant[i].StartDate).Before(DayStart(relevant[j].StartDate))
	})

	next := day
	for _, b := range relevant {
		if DayStart(b.StartDate).After(next) {
			break
		}
		if end := NextDay(b.EndDate); end.After(next) {
			next = end
		}
	}

	return next
}
