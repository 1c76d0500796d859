package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// UserInfoVerifier resolves tokens by presenting them to the identity
// provider's userinfo endpoint, e.g. the OpenShift users/~ API. The
// provider answers with the identity the token belongs to.
type UserInfoVerifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewUserInfoVerifier creates a verifier against the given endpoint.
func NewUserInfoVerifier(url string, timeout time.Duration, logger *zap.Logger) *UserInfoVerifier {
	return &UserInfoVerifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// userInfoResponse matches the subset of the provider's answer we need.
type userInfoResponse struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
}

// Verify presents the bearer token to the userinfo endpoint and returns
// the username the provider reports.
func (v *UserInfoVerifier) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		v.logger.Warn("Unexpected userinfo response",
			zap.Int("status", resp.StatusCode),
		)
		return "", fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	if info.Metadata.Name == "" {
		return "", ErrInvalidToken
	}

	return info.Metadata.Name, nil
}
