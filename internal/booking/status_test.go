package booking

import (
	"testing"
	"time"

	"github.com/superorange0707/environment-booking/internal/model"
)

func TestProjectStatus(t *testing.T) {
	now := day("2026-03-16")

	tests := []struct {
		name     string
		env      model.Environment
		bookings []model.Booking
		want     model.EnvironmentStatus
	}{
		{
			name: "no bookings projects ready",
			env:  model.Environment{ID: 1},
			want: model.StatusReady,
		},
		{
			name: "booking spanning now projects booked",
			env:  model.Environment{ID: 1},
			bookings: []model.Booking{
				active(1, "2026-03-15", "2026-03-20"),
			},
			want: model.StatusBooked,
		},
		{
			name: "future booking projects ready",
			env:  model.Environment{ID: 1},
			bookings: []model.Booking{
				active(1, "2026-03-20", "2026-03-25"),
			},
			want: model.StatusReady,
		},
		{
			name: "maintenance overrides an active booking",
			env:  model.Environment{ID: 1, ManualStatus: model.ManualMaintenance},
			bookings: []model.Booking{
				active(1, "2026-03-15", "2026-03-20"),
			},
			want: model.StatusRequiresAttention,
		},
		{
			name: "manual ready defers to bookings",
			env:  model.Environment{ID: 1, ManualStatus: model.ManualReady},
			bookings: []model.Booking{
				active(1, "2026-03-15", "2026-03-20"),
			},
			want: model.StatusBooked,
		},
		{
			name: "cancelled booking projects ready",
			env:  model.Environment{ID: 1},
			bookings: []model.Booking{
				func() model.Booking {
					b := active(1, "2026-03-15", "2026-03-20")
					b.Status = model.BookingCancelled
					return b
				}(),
			},
			want: model.StatusReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectStatus(tt.env, tt.bookings, now)
			if got != tt.want {
				t.Errorf("ProjectStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProjectStatusIdempotent(t *testing.T) {
	env := model.Environment{ID: 1}
	bookings := []model.Booking{active(1, "2026-03-15", "2026-03-20")}
	now := time.Date(2026, 3, 16, 9, 30, 0, 0, time.UTC)

	first := ProjectStatus(env, bookings, now)
	for i := 0; i < 5; i++ {
		if got := ProjectStatus(env, bookings, now); got != first {
			t.Fatalf("ProjectStatus() = %s on repeat, want %s", got, first)
		}
	}
}
