// Package server wires the three HTTP listeners (API, probe, metrics)
// around the booking handlers, health manager, and metrics registry.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
	"github.com/superorange0707/environment-booking/internal/config"
	"github.com/superorange0707/environment-booking/internal/handlers"
	"github.com/superorange0707/environment-booking/internal/health"
	"github.com/superorange0707/environment-booking/internal/metrics"
	"github.com/superorange0707/environment-booking/internal/middleware"
	"github.com/superorange0707/environment-booking/internal/storage"
	"github.com/superorange0707/environment-booking/internal/ws"
)

// Dependencies carries the collaborators the server mounts routes over.
// Nil entries disable the corresponding surface, which keeps listener
// tests independent of external services.
type Dependencies struct {
	Store       storage.Store
	Admission   handlers.Admission
	Publisher   handlers.Publisher
	Hub         *ws.Hub
	Upgrader    *ws.Upgrader
	Verifier    auth.Verifier
	RateLimiter *middleware.RateLimiter

	// ExtraChecks are additional health checkers (lease store, etc.)
	// registered alongside the built-in ones.
	ExtraChecks []health.Checker
}

// Server manages the three HTTP servers (API, Probe, Metrics).
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	health  *health.Manager
	deps    Dependencies

	apiServer     *http.Server
	probeServer   *http.Server
	metricsServer *http.Server
	shutdownChan  chan struct{}
}

// New creates a new Server instance around the shared metrics registry
// and a fresh health manager.
func New(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, deps Dependencies) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		logger:       logger,
		metrics:      m,
		deps:         deps,
		shutdownChan: make(chan struct{}),
	}

	s.health = health.NewManager(logger, cfg.HealthCheckCacheDuration, cfg.HealthCheckTimeout)
	s.health.RegisterChecker(health.NewConfigChecker(logger))
	s.health.RegisterChecker(health.NewLoggerChecker(logger))
	s.health.RegisterChecker(health.NewServerChecker(logger))
	s.health.RegisterChecker(health.NewReadinessChecker(logger))
	if deps.Store != nil {
		s.health.RegisterChecker(health.NewDatabaseChecker(deps.Store, logger))
	}
	for _, checker := range deps.ExtraChecks {
		s.health.RegisterChecker(checker)
	}

	if deps.Hub != nil {
		deps.Hub.OnCount(func(n int) {
			s.metrics.WSClients.Set(float64(n))
		})
	}

	s.setupServers()

	return s, nil
}

// Metrics exposes the registry so callers can register collectors of
// their own (the lease store metrics, for one).
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// setupServers configures the three HTTP servers.
func (s *Server) setupServers() {
	h := handlers.NewHandlers(s.deps.Store, s.deps.Admission, s.deps.Publisher, s.logger, s.metrics)

	s.apiServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler:      s.setupAPIRouter(h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSEnabled {
		s.apiServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	s.probeServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.ProbeHost, s.cfg.ProbePort),
		Handler:      s.setupProbeRouter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	s.metricsServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.MetricsHost, s.cfg.MetricsPort),
		Handler:      s.setupMetricsRouter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

// setupAPIRouter creates the API server router with middleware.
func (s *Server) setupAPIRouter(h *handlers.Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.LoggingMiddleware(s.logger, "api"))
	r.Use(middleware.RecovererMiddleware(s.logger))
	r.Use(middleware.MetricsMiddleware(s.metrics, s.logger))

	s.setupAPIRoutes(r, h)

	return r
}

// setupProbeRouter creates the probe server router.
func (s *Server) setupProbeRouter() *chi.Mux {
	r := chi.NewRouter()
	s.setupProbeRoutes(r)
	return r
}

// setupMetricsRouter creates the metrics server router.
func (s *Server) setupMetricsRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return r
}

// Start starts all three HTTP servers.
func (s *Server) Start() error {
	errChan := make(chan error, 3)

	go func() {
		s.logger.Info("Starting API server", zap.String("addr", s.apiServer.Addr))

		var err error
		if s.cfg.TLSEnabled {
			err = s.apiServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.apiServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	go func() {
		s.logger.Info("Starting probe server", zap.String("addr", s.probeServer.Addr))

		if err := s.probeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("probe server error: %w", err)
		}
	}()

	go func() {
		s.logger.Info("Starting metrics server", zap.String("addr", s.metricsServer.Addr))

		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Wait a bit to see if any server fails to start
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-errChan:
		return err
	default:
		s.health.SetServersRunning(true)
		go s.updateRuntime()
		return nil
	}
}

// updateRuntime ticks the uptime counter and refreshes runtime metrics.
func (s *Server) updateRuntime() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.metrics.AppUptimeSeconds.Add(1)
			s.metrics.UpdateRuntimeMetrics()
		case <-s.shutdownChan:
			return
		}
	}
}

// Shutdown gracefully shuts down all servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down servers gracefully")

	// Flip readiness first so load balancers drain before sockets close
	s.health.SetShuttingDown(true)
	s.health.SetServersRunning(false)

	close(s.shutdownChan)

	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("Shutting down API server")
		if err := s.apiServer.Shutdown(ctx); err != nil {
			errChan <- fmt.Errorf("API server shutdown error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("Shutting down metrics server")
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errChan <- fmt.Errorf("metrics server shutdown error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("Shutting down probe server")
		if err := s.probeServer.Shutdown(ctx); err != nil {
			errChan <- fmt.Errorf("probe server shutdown error: %w", err)
		}
	}()

	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return err
		}
	}

	s.logger.Info("All servers shut down successfully")
	return nil
}

// WaitForServers waits for all servers to be ready.
func (s *Server) WaitForServers(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if s.checkServer(s.apiServer.Addr) &&
			s.checkServer(s.probeServer.Addr) &&
			s.checkServer(s.metricsServer.Addr) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	return fmt.Errorf("servers did not become ready within %s", timeout)
}

// checkServer checks if a server is listening on the given address.
func (s *Server) checkServer(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
