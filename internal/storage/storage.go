// Package storage persists bookings, environments, users, and audit
// entries in PostgreSQL. The write path for bookings is the authoritative
// guard against double booking: creation locks the environment row,
// re-checks the overlap in SQL inside the transaction, and is backstopped
// by an exclusion constraint on active bookings.
package storage

import (
	"context"
	"errors"

	"github.com/superorange0707/environment-booking/internal/model"
)

// Common errors returned by the storage layer.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOverlap is returned when a booking would share a day with an
	// existing active booking on the same environment.
	ErrOverlap = errors.New("booking overlaps an existing booking")
)

// BookingStore manages booking rows. Bookings are never deleted;
// cancellation marks the row Cancelled and stamps the time.
type BookingStore interface {
	// CreateBooking inserts a booking atomically. The environment row is
	// locked for the duration of the transaction and the overlap check is
	// re-run in SQL, so a concurrent duplicate surfaces as ErrOverlap. An
	// audit entry is written in the same transaction.
	CreateBooking(ctx context.Context, b *model.Booking) (*model.Booking, error)

	// CancelBooking marks the booking Cancelled and writes an audit entry
	// in the same transaction. Returns ErrNotFound for an unknown ID and
	// the updated booking on success; cancelling twice is an error.
	CancelBooking(ctx context.Context, id, actorID int64) (*model.Booking, error)

	// GetBooking retrieves a single booking by ID.
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)

	// ListBookings returns every booking joined with environment name and
	// username, newest first.
	ListBookings(ctx context.Context) ([]model.BookingView, error)

	// ListActiveBookings returns every active booking, grouped use is up
	// to the caller (validation and projection).
	ListActiveBookings(ctx context.Context) ([]model.Booking, error)

	// ListActiveByEnvironment returns the active bookings for one
	// environment, ordered by start date.
	ListActiveByEnvironment(ctx context.Context, environmentID int64) ([]model.Booking, error)
}

// EnvironmentStore manages environment rows.
type EnvironmentStore interface {
	// GetEnvironment retrieves a single environment by ID.
	GetEnvironment(ctx context.Context, id int64) (*model.Environment, error)

	// ListEnvironments returns all environments ordered by name.
	ListEnvironments(ctx context.Context) ([]model.Environment, error)

	// UpdateEnvironment edits the descriptive fields and audits the change.
	UpdateEnvironment(ctx context.Context, id int64, name, envType string, actorID int64) (*model.Environment, error)

	// SetManualStatus sets the operator override and audits the change.
	SetManualStatus(ctx context.Context, id int64, status model.ManualStatus, actorID int64) (*model.Environment, error)
}

// UserStore manages user rows provisioned from the identity provider.
type UserStore interface {
	// EnsureUser returns the user for a username, creating the row with
	// the user role on first sight.
	EnsureUser(ctx context.Context, username string) (*model.User, error)

	// GetUser retrieves a single user by ID.
	GetUser(ctx context.Context, id int64) (*model.User, error)

	// ListUsers returns all users ordered by username.
	ListUsers(ctx context.Context) ([]model.User, error)
}

// AuditStore reads the audit trail written by the other stores.
type AuditStore interface {
	// ListAuditEntries returns audit entries newest first, optionally
	// filtered to one environment (environmentID 0 means all).
	ListAuditEntries(ctx context.Context, environmentID int64, limit int) ([]model.AuditEntry, error)
}

// Store is the full persistence surface the service wires together.
type Store interface {
	BookingStore
	EnvironmentStore
	UserStore
	AuditStore

	// Ping verifies database connectivity for health checks.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close()
}
