// Package handlers provides the HTTP handlers for the booking API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/metrics"
	"github.com/superorange0707/environment-booking/internal/model"
	"github.com/superorange0707/environment-booking/internal/storage"
)

// Admission serializes booking attempts per environment.
type Admission interface {
	Acquire(ctx context.Context, environmentID int64, holder string) error
	Release(ctx context.Context, environmentID int64)
}

// Publisher pushes a change event after a successful mutation.
type Publisher interface {
	Publish(ctx context.Context, eventType string)
}

// Handlers provides HTTP handlers for booking, environment, user, and
// audit operations.
type Handlers struct {
	store     storage.Store
	admission Admission
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics

	// now is replaceable in tests
	now func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store storage.Store, admission Admission, publisher Publisher, logger *zap.Logger, m *metrics.Metrics) *Handlers {
	return &Handlers{
		store:     store,
		admission: admission,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// respondError sends an error envelope with an optional machine-readable
// reason code.
func (h *Handlers) respondError(w http.ResponseWriter, status int, message, reason string) {
	h.respondJSON(w, status, model.ErrorResponse{
		Status:  "error",
		Message: message,
		Reason:  reason,
	})
}

// respondJSON sends a JSON response.
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// recordMetric records a booking operation metric.
func (h *Handlers) recordMetric(operation, status string) {
	if h.metrics != nil && h.metrics.BookingOperationsTotal != nil {
		h.metrics.BookingOperationsTotal.WithLabelValues(operation, status).Inc()
	}
}
