package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
)

// HandleListUsers handles GET /api/users requests.
func (h *Handlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to list users", "")
		return
	}

	h.respondJSON(w, http.StatusOK, users)
}

// HandleMe handles GET /api/auth/me requests, returning the
// authenticated user as provisioned by the auth middleware.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}
