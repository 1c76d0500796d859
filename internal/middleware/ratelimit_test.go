package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
	"github.com/superorange0707/environment-booking/internal/model"
)

func TestRateLimiterFailOpen(t *testing.T) {
	// Point at a port nothing listens on; requests must still pass.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(client, 2, time.Minute, zap.NewNop())

	called := 0
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/api/bookings", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, rr.Code, http.StatusOK)
		}
	}

	if called != 5 {
		t.Errorf("handler called %d times, want 5", called)
	}
}

func TestRateLimiterKey(t *testing.T) {
	rl := NewRateLimiter(nil, 1, time.Minute, zap.NewNop())

	t.Run("authenticated user", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/bookings", nil)
		req = req.WithContext(auth.WithUser(req.Context(), &model.User{ID: 42, Username: "alice"}))

		if key := rl.key(req); key != "ratelimit:user:42" {
			t.Errorf("key = %s, want ratelimit:user:42", key)
		}
	})

	t.Run("anonymous falls back to address", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/bookings", nil)
		req.RemoteAddr = "10.1.2.3:52114"

		if key := rl.key(req); key != "ratelimit:addr:10.1.2.3" {
			t.Errorf("key = %s, want ratelimit:addr:10.1.2.3", key)
		}
	})

	t.Run("address without port", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/bookings", nil)
		req.RemoteAddr = "10.1.2.3"

		if key := rl.key(req); key != "ratelimit:addr:10.1.2.3" {
			t.Errorf("key = %s, want ratelimit:addr:10.1.2.3", key)
		}
	})
}
