package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
	"github.com/superorange0707/environment-booking/internal/handlers"
	"github.com/superorange0707/environment-booking/internal/health"
	"github.com/superorange0707/environment-booking/internal/middleware"
)

// setupAPIRoutes configures the API server routes. Read-only booking
// and environment views are public; mutations require a verified user,
// and admin surfaces additionally require the admin role.
func (s *Server) setupAPIRoutes(r *chi.Mux, h *handlers.Handlers) {
	r.Get("/ping", s.handlePing())

	r.Get("/api/bookings", h.HandleListBookings)
	r.Get("/api/environments", h.HandleListEnvironments)
	r.Get("/api/environments/status", h.HandleEnvironmentStatus)

	if s.deps.Hub != nil && s.deps.Upgrader != nil {
		r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
			s.deps.Upgrader.Serve(s.deps.Hub, w, req)
		})
	}

	if s.deps.Verifier == nil {
		// No verifier wired (listener-only tests); authenticated routes
		// stay unmounted rather than unprotected.
		return
	}

	authed := auth.Middleware(s.deps.Verifier, s.deps.Store, s.logger)

	r.Group(func(r chi.Router) {
		r.Use(authed)

		r.Get("/api/users", h.HandleListUsers)
		r.Get("/api/auth/me", h.HandleMe)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/api/bookings", h.HandleCreateBooking)
			r.Post("/api/bookings/{id}/cancel", h.HandleCancelBooking)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Use(s.rateLimit)
			r.Put("/api/environments/{id}", h.HandleUpdateEnvironment)
			r.Put("/api/environments/{id}/status", h.HandleSetEnvironmentStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/api/admin/audit-log", h.HandleAuditLog)
		})
	})
}

// rateLimit applies the configured rate limiter, or nothing when rate
// limiting is disabled.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.deps.RateLimiter == nil {
		return next
	}
	return s.deps.RateLimiter.Limit(next)
}

// setupProbeRoutes configures the probe server routes backed by the
// health manager.
func (s *Server) setupProbeRoutes(r *chi.Mux) {
	r.With(middleware.HealthCheckMetricsMiddleware(s.metrics, "startup")).
		Get("/healthz/startup", s.handleStartup())
	r.With(middleware.HealthCheckMetricsMiddleware(s.metrics, "live")).
		Get("/healthz/live", s.handleLiveness())
	r.With(middleware.HealthCheckMetricsMiddleware(s.metrics, "ready")).
		Get("/healthz/ready", s.handleReadiness())
}

// handlePing handles the /ping endpoint.
func (s *Server) handlePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	}
}

// handleStartup reports the aggregated startup checks.
func (s *Server) handleStartup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := s.health.GetStartupStatus(r.Context())

		status := http.StatusOK
		if response.Status != health.StatusOK {
			status = http.StatusServiceUnavailable
		}

		s.respondJSON(w, status, response)
	}
}

// handleLiveness reports process liveness only.
func (s *Server) handleLiveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, s.health.GetLivenessStatus())
	}
}

// handleReadiness reports whether the service should receive traffic.
func (s *Server) handleReadiness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := s.health.GetReadinessStatus(r.Context())

		status := http.StatusOK
		if !response.Ready {
			status = http.StatusServiceUnavailable
		}

		s.respondJSON(w, status, response)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
