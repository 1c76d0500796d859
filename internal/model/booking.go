// Package model defines the shared domain types for the environment
// booking service: bookings, environments, users, audit entries, and the
// request/response shapes exchanged over the HTTP API and the change feed.
package model

import "time"

// BookingStatus is the lifecycle state of a booking row. Bookings are
// never deleted; cancellation flips the status and stamps CancelledAt.
type BookingStatus string

const (
	BookingActive    BookingStatus = "Active"
	BookingCancelled BookingStatus = "Cancelled"
)

// Booking reserves one environment for an inclusive range of whole days.
type Booking struct {
	ID            int64         `json:"id"`
	EnvironmentID int64         `json:"environment_id"`
	UserID        int64         `json:"user_id"`
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	Purpose       string        `json:"purpose,omitempty"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
}

// Active reports whether the booking still participates in validation,
// availability, and status projection.
func (b Booking) Active() bool {
	return b.Status == BookingActive
}

// ManualStatus is an operator-set override on an environment. An empty
// value means no override; computed status is derived, never stored.
type ManualStatus string

const (
	ManualReady       ManualStatus = "Ready"
	ManualMaintenance ManualStatus = "Maintenance"
)

// Valid reports whether the value is one an operator may set.
func (s ManualStatus) Valid() bool {
	return s == ManualReady || s == ManualMaintenance
}

// EnvironmentStatus is the projected, user-facing state of an environment.
type EnvironmentStatus string

const (
	StatusReady             EnvironmentStatus = "Ready"
	StatusBooked            EnvironmentStatus = "Booked"
	StatusRequiresAttention EnvironmentStatus = "Requires Attention"
)

// Environment is a bookable shared environment.
type Environment struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	ManualStatus ManualStatus `json:"manual_status,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Role is the access level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a known account, provisioned on first sight from the identity
// provider's username.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Admin reports whether the user may reach admin-only operations.
func (u User) Admin() bool {
	return u.Role == RoleAdmin
}

// AuditEntry records an administrative or booking action against an
// environment for later review.
type AuditEntry struct {
	ID            int64     `json:"id"`
	EnvironmentID int64     `json:"environment_id"`
	BookingID     *int64    `json:"booking_id,omitempty"`
	ActorID       int64     `json:"actor_id"`
	Action        string    `json:"action"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Audit action names written by the storage layer.
const (
	AuditBookingCreated   = "booking.created"
	AuditBookingCancelled = "booking.cancelled"
	AuditStatusChanged    = "environment.status_changed"
	AuditEnvironmentEdit  = "environment.updated"
)
