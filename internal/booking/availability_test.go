package booking

import (
	"testing"

	"github.com/superorange0707/environment-booking/internal/model"
)

func TestNextAvailableDate(t *testing.T) {
	today := day("2026-03-10")

	tests := []struct {
		name     string
		bookings []model.Booking
		want     string
	}{
		{
			name:     "no bookings means today",
			bookings: nil,
			want:     "2026-03-10",
		},
		{
			name: "fully past bookings are ignored",
			bookings: []model.Booking{
				active(1, "2026-03-01", "2026-03-05"),
			},
			want: "2026-03-10",
		},
		{
			name: "future booking does not block today",
			bookings: []model.Booking{
				active(1, "2026-03-15", "2026-03-20"),
			},
			want: "2026-03-10",
		},
		{
			name: "ongoing booking pushes past its end",
			bookings: []model.Booking{
				active(1, "2026-03-08", "2026-03-12"),
			},
			want: "2026-03-13",
		},
		{
			name: "booking starting today pushes past its end",
			bookings: []model.Booking{
				active(1, "2026-03-10", "2026-03-11"),
			},
			want: "2026-03-12",
		},
		{
			name: "back to back bookings merge into one streak",
			bookings: []model.Booking{
				active(1, "2026-03-10", "2026-03-12"),
				active(1, "2026-03-13", "2026-03-15"),
			},
			want: "2026-03-16",
		},
		{
			name: "unsorted input still merges",
			bookings: []model.Booking{
				active(1, "2026-03-13", "2026-03-15"),
				active(1, "2026-03-10", "2026-03-12"),
			},
			want: "2026-03-16",
		},
		{
			name: "gap after the streak stops the scan",
			bookings: []model.Booking{
				active(1, "2026-03-10", "2026-03-12"),
				active(1, "2026-03-14", "2026-03-16"),
			},
			want: "2026-03-13",
		},
		{
			name: "overlapping bookings extend to the later end",
			bookings: []model.Booking{
				active(1, "2026-03-09", "2026-03-14"),
				active(1, "2026-03-11", "2026-03-12"),
			},
			want: "2026-03-15",
		},
		{
			name: "cancelled bookings never block",
			bookings: []model.Booking{
				func() model.Booking {
					b := active(1, "2026-03-10", "2026-03-20")
					b.Status = model.BookingCancelled
					return b
				}(),
			},
			want: "2026-03-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextAvailableDate(tt.bookings, today)
			if want := day(tt.want); !got.Equal(want) {
				t.Errorf("NextAvailableDate() = %s, want %s",
					got.Format(DayLayout), tt.want)
			}
		})
	}
}

func TestNextAvailableDateNeverInPast(t *testing.T) {
	// Even when every booking sits in the past, the answer is today.
	today := day("2026-03-10")
	bookings := []model.Booking{
		active(1, "2026-02-01", "2026-02-05"),
		active(1, "2026-02-10", "2026-02-12"),
	}

	got := NextAvailableDate(bookings, today)
	if got.Before(DayStart(today)) {
		t.Errorf("NextAvailableDate() = %s is before today", got.Format(DayLayout))
	}
}
