package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
	"github.com/superorange0707/environment-booking/internal/feed"
	"github.com/superorange0707/environment-booking/internal/model"
	"github.com/superorange0707/environment-booking/internal/storage"
)

// HandleListEnvironments handles GET /api/environments requests.
// Returns the raw environment rows; projected status lives on the
// status endpoint.
func (h *Handlers) HandleListEnvironments(w http.ResponseWriter, r *http.Request) {
	environments, err := h.store.ListEnvironments(r.Context())
	if err != nil {
		h.logger.Error("Failed to list environments", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to list environments", "")
		return
	}

	h.respondJSON(w, http.StatusOK, environments)
}

// HandleEnvironmentStatus handles GET /api/environments/status requests.
// Returns each environment with its projected status and next available
// date, computed fresh from active bookings.
func (h *Handlers) HandleEnvironmentStatus(w http.ResponseWriter, r *http.Request) {
	views, err := feed.StatusViews(r.Context(), h.store, h.now())
	if err != nil {
		h.logger.Error("Failed to project environment statuses", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to project environment statuses", "")
		return
	}

	h.respondJSON(w, http.StatusOK, views)
}

// HandleUpdateEnvironment handles PUT /api/environments/{id} requests.
// Admin only (enforced by route middleware); edits name and type.
// Returns:
//   - 200 OK: Environment updated
//   - 400 Bad Request: Invalid ID, body, or empty name
//   - 404 Not Found: Unknown environment
//   - 500 Internal Server Error: Storage error
func (h *Handlers) HandleUpdateEnvironment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid environment ID", "")
		return
	}

	var req model.EnvironmentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode environment update", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Type = strings.TrimSpace(req.Type)
	if req.Name == "" {
		h.respondError(w, http.StatusBadRequest, "Environment name is required", ReasonMissingFields)
		return
	}

	env, err := h.store.UpdateEnvironment(r.Context(), id, req.Name, req.Type, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Environment not found", "")
			return
		}
		h.logger.Error("Failed to update environment", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to update environment", "")
		return
	}

	h.publisher.Publish(r.Context(), model.EventEnvironmentEdit)
	h.respondJSON(w, http.StatusOK, env)
}

// HandleSetEnvironmentStatus handles PUT /api/environments/{id}/status
// requests. Admin only; sets the manual override to Ready or
// Maintenance. Maintenance blocks new bookings but leaves existing ones
// untouched.
// Returns:
//   - 200 OK: Status updated
//   - 400 Bad Request: Invalid ID, body, or status value
//   - 404 Not Found: Unknown environment
//   - 500 Internal Server Error: Storage error
func (h *Handlers) HandleSetEnvironmentStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid environment ID", "")
		return
	}

	var req model.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode status update", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if !req.Status.Valid() {
		h.respondError(w, http.StatusBadRequest, "Status must be Ready or Maintenance", "invalid_status")
		return
	}

	env, err := h.store.SetManualStatus(r.Context(), id, req.Status, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Environment not found", "")
			return
		}
		h.logger.Error("Failed to set environment status", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to set environment status", "")
		return
	}

	h.logger.Info("Environment manual status changed",
		zap.Int64("environment_id", id),
		zap.String("status", string(req.Status)),
		zap.String("actor", user.Username),
	)

	h.publisher.Publish(r.Context(), model.EventStatusChanged)
	h.respondJSON(w, http.StatusOK, env)
}
