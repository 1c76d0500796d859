package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/superorange0707/environment-booking/internal/config"
	"github.com/superorange0707/environment-booking/internal/logger"
	"github.com/superorange0707/environment-booking/internal/metrics"
)

// testBuildInfo returns a standard build info for tests.
func testBuildInfo() map[string]string {
	return map[string]string{
		"version": "test",
		"commit":  "test",
		"date":    "test",
	}
}

// testConfig returns a listener config on unique localhost ports so
// tests can run side by side.
func testConfig(apiPort, probePort, metricsPort int) *config.Config {
	return &config.Config{
		APIPort:                  apiPort,
		APIHost:                  "127.0.0.1",
		ProbePort:                probePort,
		ProbeHost:                "127.0.0.1",
		MetricsPort:              metricsPort,
		MetricsHost:              "127.0.0.1",
		LogLevel:                 "error",
		LogFormat:                "json",
		ShutdownTimeout:          5 * time.Second,
		HealthCheckTimeout:       5 * time.Second,
		HealthCheckCacheDuration: 10 * time.Millisecond,
		MetricsNamespace:         "test",
	}
}

func startTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	log, err := logger.New("error", "json")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	srv, err := New(cfg, log, metrics.NewMetrics("test", testBuildInfo()), Dependencies{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	if err := srv.WaitForServers(5 * time.Second); err != nil {
		t.Fatalf("WaitForServers() error = %v", err)
	}

	return srv
}

func TestNew(t *testing.T) {
	cfg := testConfig(18080, 18081, 19090)

	log, err := logger.New("info", "json")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	srv, err := New(cfg, log, metrics.NewMetrics("test", testBuildInfo()), Dependencies{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if srv == nil {
		t.Fatal("New() returned nil server")
	}

	if srv.apiServer == nil {
		t.Error("API server is nil")
	}

	if srv.probeServer == nil {
		t.Error("Probe server is nil")
	}

	if srv.metricsServer == nil {
		t.Error("Metrics server is nil")
	}

	if srv.Metrics() == nil {
		t.Error("Metrics() returned nil")
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	cfg := testConfig(18082, 18083, 19091)

	log, err := logger.New("error", "json")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	srv, err := New(cfg, log, metrics.NewMetrics("test", testBuildInfo()), Dependencies{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := srv.WaitForServers(5 * time.Second); err != nil {
		t.Fatalf("WaitForServers() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestAPIPingEndpoint(t *testing.T) {
	cfg := testConfig(18084, 18085, 19092)
	startTestServer(t, cfg)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", cfg.APIPort))
	if err != nil {
		t.Fatalf("GET /ping error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", contentType)
	}

	var response map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response["status"] != "pong" {
		t.Errorf("Response status = %s, want pong", response["status"])
	}
}

func TestAuthenticatedRoutesUnmountedWithoutVerifier(t *testing.T) {
	cfg := testConfig(18086, 18087, 19093)
	startTestServer(t, cfg)

	// With no verifier wired, mutating routes must not exist at all.
	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/api/bookings", cfg.APIPort), "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/bookings error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want 404 or 405", resp.StatusCode)
	}
}

func TestProbeEndpoints(t *testing.T) {
	cfg := testConfig(18088, 18089, 19094)
	startTestServer(t, cfg)

	tests := []struct {
		name     string
		endpoint string
	}{
		{"startup probe", "/healthz/startup"},
		{"liveness probe", "/healthz/live"},
		{"readiness probe", "/healthz/ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", cfg.ProbePort, tt.endpoint))
			if err != nil {
				t.Fatalf("GET %s error = %v", tt.endpoint, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("Status code = %d, want %d", resp.StatusCode, http.StatusOK)
			}

			contentType := resp.Header.Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("Content-Type = %s, want application/json", contentType)
			}

			var response map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}

			if _, ok := response["status"]; !ok {
				t.Error("Response missing 'status' field")
			}

			if _, ok := response["timestamp"]; !ok {
				t.Error("Response missing 'timestamp' field")
			}
		})
	}
}

func TestReadinessAfterShutdownSignal(t *testing.T) {
	cfg := testConfig(18090, 18091, 19095)
	srv := startTestServer(t, cfg)

	srv.health.SetShuttingDown(true)

	// Let the cached readiness result expire
	time.Sleep(20 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz/ready", cfg.ProbePort))
	if err != nil {
		t.Fatalf("GET /healthz/ready error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Status code = %d, want %d during shutdown", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig(18092, 18093, 19096)
	startTestServer(t, cfg)

	// Make a request to the API server to generate some metrics
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", cfg.APIPort))
	if err != nil {
		t.Fatalf("GET /ping error = %v", err)
	}
	resp.Body.Close()

	time.Sleep(100 * time.Millisecond)

	resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", cfg.MetricsPort))
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	bodyStr := string(body)
	expectedMetrics := []string{
		"test_app_info",
		"test_http_requests_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("Metrics output does not contain %s", metric)
		}
	}
}

func TestGracefulShutdownTimeout(t *testing.T) {
	cfg := testConfig(18094, 18095, 19097)

	log, err := logger.New("error", "json")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	srv, err := New(cfg, log, metrics.NewMetrics("test", testBuildInfo()), Dependencies{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := srv.WaitForServers(5 * time.Second); err != nil {
		t.Fatalf("WaitForServers() error = %v", err)
	}

	// Shutdown with very short timeout; should complete quickly with no
	// connections in flight
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_ = srv.Shutdown(ctx)
}
