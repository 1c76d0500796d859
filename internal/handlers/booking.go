package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
	"github.com/superorange0707/environment-booking/internal/booking"
	"github.com/superorange0707/environment-booking/internal/guard"
	"github.com/superorange0707/environment-booking/internal/model"
	"github.com/superorange0707/environment-booking/internal/storage"
)

// Machine-readable reason codes carried in error responses so clients
// can branch without parsing messages.
const (
	ReasonMissingFields = "missing_fields"
	ReasonInvalidDate   = "invalid_date"
	ReasonPastDate      = "past_date"
	ReasonInvertedRange = "inverted_range"
	ReasonOverlap       = "overlap"
	ReasonBusy          = "busy"
	ReasonMaintenance   = "maintenance"
)

// HandleListBookings handles GET /api/bookings requests.
// Returns:
//   - 200 OK: All bookings, newest first, with environment and user names
//   - 500 Internal Server Error: Storage error
func (h *Handlers) HandleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.store.ListBookings(r.Context())
	if err != nil {
		h.logger.Error("Failed to list bookings", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to list bookings", "")
		return
	}

	h.respondJSON(w, http.StatusOK, bookings)
}

// HandleCreateBooking handles POST /api/bookings requests.
// Returns:
//   - 201 Created: Booking created
//   - 400 Bad Request: Invalid body, dates, or range (reason code set)
//   - 404 Not Found: Unknown environment
//   - 409 Conflict: Overlapping booking, busy environment, or maintenance
//   - 500 Internal Server Error: Storage or internal error
func (h *Handlers) HandleCreateBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode booking request", zap.Error(err))
		h.recordMetric("create", "failure")
		h.respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if req.EnvironmentID <= 0 {
		h.recordMetric("create", "failure")
		h.respondError(w, http.StatusBadRequest, "Environment is required", ReasonMissingFields)
		return
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		h.recordMetric("create", "failure")
		h.respondError(w, http.StatusBadRequest, "Dates must be YYYY-MM-DD", ReasonInvalidDate)
		return
	}

	env, err := h.store.GetEnvironment(r.Context(), req.EnvironmentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.recordMetric("create", "failure")
			h.respondError(w, http.StatusNotFound, "Environment not found", "")
			return
		}
		h.logger.Error("Failed to load environment", zap.Error(err))
		h.recordMetric("create", "failure")
		h.respondError(w, http.StatusInternalServerError, "Failed to create booking", "")
		return
	}

	if env.ManualStatus == model.ManualMaintenance {
		h.recordMetric("create", "rejected")
		h.respondError(w, http.StatusConflict, "Environment is under maintenance", ReasonMaintenance)
		return
	}

	// Serialize concurrent attempts for this environment behind a
	// short-lived admission lease.
	if err := h.admission.Acquire(r.Context(), env.ID, user.Username); err != nil {
		if errors.Is(err, guard.ErrEnvironmentBusy) {
			h.recordMetric("create", "busy")
			h.respondError(w, http.StatusConflict, "Another booking attempt is in progress", ReasonBusy)
			return
		}
		h.logger.Error("Failed to acquire admission lease", zap.Error(err))
		h.recordMetric("create", "failure")
		h.respondError(w, http.StatusInternalServerError, "Failed to create booking", "")
		return
	}
	defer h.admission.Release(r.Context(), env.ID)

	existing, err := h.store.ListActiveByEnvironment(r.Context(), env.ID)
	if err != nil {
		h.logger.Error("Failed to load active bookings", zap.Error(err))
		h.recordMetric("create", "failure")
		h.respondError(w, http.StatusInternalServerError, "Failed to create booking", "")
		return
	}

	candidate := booking.Range{Start: start, End: end}
	if err := booking.ValidateRange(candidate, env.ID, existing, h.now()); err != nil {
		status, reason := rejectionStatus(err)
		h.logger.Debug("Booking rejected",
			zap.Int64("environment_id", env.ID),
			zap.String("reason", reason),
		)
		h.recordMetric("create", reason)
		h.respondError(w, status, err.Error(), reason)
		return
	}

	created, err := h.store.CreateBooking(r.Context(), &model.Booking{
		EnvironmentID: env.ID,
		UserID:        user.ID,
		StartDate:     booking.DayStart(start),
		EndDate:       booking.DayStart(end),
		Purpose:       req.Purpose,
		Status:        model.BookingActive,
	})
	if err != nil {
		if errors.Is(err, storage.ErrOverlap) {
			// A concurrent writer slipped in between validation and
			// insert; the transaction caught it.
			h.recordMetric("create", ReasonOverlap)
			h.respondError(w, http.StatusConflict, "Range overlaps an existing booking", ReasonOverlap)
			return
		}
		h.logger.Error("Failed to create booking", zap.Error(err))
		h.recordMetric("create", "failure")
		h.respondError(w, http.StatusInternalServerError, "Failed to create booking", "")
		return
	}

	h.recordMetric("create", "success")
	h.publisher.Publish(r.Context(), model.EventBookingCreated)

	h.respondJSON(w, http.StatusCreated, model.BookingResponse{
		Status:  "booked",
		Message: "Booking created successfully",
		Booking: created,
	})
}

// HandleCancelBooking handles POST /api/bookings/{id}/cancel requests.
// The booking owner or an admin may cancel; the row is marked Cancelled,
// never deleted.
// Returns:
//   - 200 OK: Booking cancelled
//   - 400 Bad Request: Invalid booking ID
//   - 403 Forbidden: Caller is neither owner nor admin
//   - 404 Not Found: Unknown or already cancelled booking
//   - 500 Internal Server Error: Storage error
func (h *Handlers) HandleCancelBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.recordMetric("cancel", "failure")
		h.respondError(w, http.StatusBadRequest, "Invalid booking ID", "")
		return
	}

	existing, err := h.store.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.recordMetric("cancel", "failure")
			h.respondError(w, http.StatusNotFound, "Booking not found", "")
			return
		}
		h.logger.Error("Failed to load booking", zap.Error(err))
		h.recordMetric("cancel", "failure")
		h.respondError(w, http.StatusInternalServerError, "Failed to cancel booking", "")
		return
	}

	if existing.UserID != user.ID && !user.Admin() {
		h.recordMetric("cancel", "forbidden")
		h.respondError(w, http.StatusForbidden, "Only the booking owner or an admin may cancel", "")
		return
	}

	cancelled, err := h.store.CancelBooking(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.recordMetric("cancel", "failure")
			h.respondError(w, http.StatusNotFound, "Booking is not active", "")
			return
		}
		h.logger.Error("Failed to cancel booking", zap.Error(err))
		h.recordMetric("cancel", "failure")
		h.respondError(w, http.StatusInternalServerError, "Failed to cancel booking", "")
		return
	}

	h.recordMetric("cancel", "success")
	h.publisher.Publish(r.Context(), model.EventBookingCancelled)

	h.respondJSON(w, http.StatusOK, model.BookingResponse{
		Status:  "cancelled",
		Message: "Booking cancelled successfully",
		Booking: cancelled,
	})
}

// parseRange parses the request dates. Empty strings pass through as
// zero times so the validator reports them as missing fields.
func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if startDate != "" {
		if start, err = booking.ParseDay(startDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endDate != "" {
		if end, err = booking.ParseDay(endDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	return start, end, nil
}

// rejectionStatus maps a validation error to an HTTP status and reason
// code.
func rejectionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrMissingField):
		return http.StatusBadRequest, ReasonMissingFields
	case errors.Is(err, booking.ErrPastDate):
		return http.StatusBadRequest, ReasonPastDate
	case errors.Is(err, booking.ErrInvertedRange):
		return http.StatusBadRequest, ReasonInvertedRange
	case errors.Is(err, booking.ErrOverlap):
		return http.StatusConflict, ReasonOverlap
	default:
		return http.StatusInternalServerError, ""
	}
}
