package model

import "time"

// BookingRequest is the payload for creating a booking. Dates arrive as
// ISO calendar days ("2006-01-02") and are normalized server-side.
type BookingRequest struct {
	EnvironmentID int64  `json:"environment_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Purpose       string `json:"purpose,omitempty"`
}

// StatusUpdateRequest sets an environment's manual status override.
type StatusUpdateRequest struct {
	Status ManualStatus `json:"status"`
}

// EnvironmentUpdateRequest edits an environment's descriptive fields.
type EnvironmentUpdateRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// BookingView is a booking joined with the names a client renders.
type BookingView struct {
	Booking
	EnvironmentName string `json:"environment_name"`
	Username        string `json:"username"`
}

// BookingResponse wraps a mutated booking.
type BookingResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Booking *Booking `json:"booking,omitempty"`
}

// EnvironmentStatusView is the projected state of one environment as
// served by the status endpoint and the change feed.
type EnvironmentStatusView struct {
	Environment
	Status        EnvironmentStatus `json:"status"`
	NextAvailable time.Time         `json:"next_available"`
}

// ChangeEvent is the single event shape pushed over the websocket feed.
// Every mutation produces one event carrying the full recomputed view.
type ChangeEvent struct {
	Type     string                  `json:"type"`
	Bookings []BookingView           `json:"bookings"`
	Statuses []EnvironmentStatusView `json:"statuses"`
}

// Change feed event types.
const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventStatusChanged    = "status_changed"
	EventEnvironmentEdit  = "environment_updated"
)

// ErrorResponse is the JSON error envelope returned by every handler.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}
