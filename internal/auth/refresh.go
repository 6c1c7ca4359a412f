package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// RefreshPath is the backend endpoint that exchanges a refresh token.
const RefreshPath = "/auth/refresh"

// ExpiryBuffer is how long before the exp claim a token counts as expiring.
const ExpiryBuffer = 5 * time.Minute

// Refresher exchanges a refresh token for a new credential set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// HTTPClient is an interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPRefresher calls POST {BaseURL}/auth/refresh with a plain client. It must
// not go through a Fetcher, otherwise a rejected refresh would recurse.
type HTTPRefresher struct {
	BaseURL string
	Client  HTTPClient
}

// NewHTTPRefresher creates a refresher for the backend at baseURL.
func NewHTTPRefresher(baseURL string, client HTTPClient) *HTTPRefresher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRefresher{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

// Refresh performs the token exchange.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	jsonData, err := json.Marshal(RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+RefreshPath, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	return &tokenResp, nil
}

// TokenExpiring reports whether tok expires within ExpiryBuffer of now.
// Tokens without a known expiry never count as expiring.
func TokenExpiring(tok *oauth2.Token, now time.Time) bool {
	if tok == nil || tok.Expiry.IsZero() {
		return false
	}
	return !now.Before(tok.Expiry.Add(-ExpiryBuffer))
}
