package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// maxAuditEntries caps one audit-log page.
const maxAuditEntries = 500

// HandleAuditLog handles GET /api/admin/audit-log requests. Admin only.
// Accepts optional environment_id and limit query parameters.
// Returns:
//   - 200 OK: Audit entries, newest first
//   - 400 Bad Request: Malformed query parameters
//   - 500 Internal Server Error: Storage error
func (h *Handlers) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	var environmentID int64
	if raw := r.URL.Query().Get("environment_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.respondError(w, http.StatusBadRequest, "Invalid environment_id", "")
			return
		}
		environmentID = id
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "Invalid limit", "")
			return
		}
		limit = n
	}
	if limit > maxAuditEntries {
		limit = maxAuditEntries
	}

	entries, err := h.store.ListAuditEntries(r.Context(), environmentID, limit)
	if err != nil {
		h.logger.Error("Failed to list audit entries", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to list audit entries", "")
		return
	}

	h.respondJSON(w, http.StatusOK, entries)
}
