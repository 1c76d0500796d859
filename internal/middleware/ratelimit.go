package middleware

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
)

// RateLimiter throttles mutating requests using a fixed-window counter
// held in Redis. Counters are keyed per authenticated user, falling
// back to the client address for anonymous requests.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	max    int
	window time.Duration
}

// NewRateLimiter creates a rate limiter backed by the given Redis client.
func NewRateLimiter(client *redis.Client, max int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger,
		max:    max,
		window: window,
	}
}

// Limit wraps a handler with the rate limit check. If Redis is
// unreachable the request is allowed through; the limiter protects
// against abuse, it must never take the API down with it.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)

		count, err := rl.client.Incr(r.Context(), key).Result()
		if err != nil {
			rl.logger.Warn("Rate limit check failed, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			next.ServeHTTP(w, r)
			return
		}

		if count == 1 {
			if err := rl.client.Expire(r.Context(), key, rl.window).Err(); err != nil {
				rl.logger.Warn("Failed to set rate limit window",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}

		if count > int64(rl.max) {
			rl.logger.Info("Request rate limited",
				zap.String("key", key),
				zap.Int64("count", count),
				zap.Int("max", rl.max),
			)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":"error","message":"Too many requests","reason":"rate_limited"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// key derives the counter key for a request.
func (rl *RateLimiter) key(r *http.Request) string {
	if user, ok := auth.UserFrom(r.Context()); ok {
		return fmt.Sprintf("ratelimit:user:%d", user.ID)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("ratelimit:addr:%s", host)
}
