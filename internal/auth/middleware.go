package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/model"
	"github.com/superorange0707/environment-booking/internal/storage"
)

type contextKey struct{}

var userKey contextKey

// UserFrom returns the authenticated user stored in the context.
func UserFrom(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Middleware verifies the bearer token on each request, provisions the
// user row on first sight, and stores the user in the request context.
func Middleware(verifier Verifier, users storage.UserStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				unauthorized(w, "Authentication required")
				return
			}

			username, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("Token verification failed", zap.Error(err))
				unauthorized(w, "Invalid or expired token")
				return
			}

			user, err := users.EnsureUser(r.Context(), username)
			if err != nil {
				logger.Error("Failed to provision user",
					zap.String("username", username),
					zap.Error(err),
				)
				respondJSON(w, http.StatusInternalServerError, model.ErrorResponse{
					Status:  "error",
					Message: "Failed to resolve user",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects requests whose context user lacks the admin role.
// It must sit inside Middleware on the route chain.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		if !ok {
			unauthorized(w, "Authentication required")
			return
		}
		if !user.Admin() {
			respondJSON(w, http.StatusForbidden, model.ErrorResponse{
				Status:  "error",
				Message: "Admin access required",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrNoToken
	}

	return parts[1], nil
}

func unauthorized(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusUnauthorized, model.ErrorResponse{
		Status:  "error",
		Message: message,
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
