package booking

import (
	"time"

	"github.com/superorange0707/environment-booking/internal/model"
)

// ProjectStatus derives the user-facing status of an environment at a
// point in time. A Maintenance override always wins and projects as
// Requires Attention; otherwise an active booking spanning now projects
// as Booked; otherwise the environment is Ready. The function is pure
// and idempotent, so the same inputs always project the same status.
func ProjectStatus(env model.Environment, bookings []model.Booking, now time.Time) model.EnvironmentStatus {
	if env.ManualStatus == model.ManualMaintenance {
		return model.StatusRequiresAttention
	}

	if CurrentBooking(bookings, now) != nil {
		return model.StatusBooked
	}

	return model.StatusReady
}
