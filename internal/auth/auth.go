// Package auth verifies bearer tokens and attaches the calling user to
// the request context. Two verifiers exist: HS256 JWTs for self-issued
// tokens, and a userinfo lookup against an external identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification errors surfaced to the middleware.
var (
	ErrNoToken      = errors.New("no bearer token provided")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Verifier resolves a bearer token to the username it belongs to.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Claims carries the username inside self-issued tokens.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for self-issued tokens.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}

	return &JWTVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token, returning the username claim.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	if claims.Username == "" {
		return "", ErrInvalidToken
	}

	return claims.Username, nil
}

// Issue signs a token for a username, valid for the given duration.
func (v *JWTVerifier) Issue(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
