// Package auth wraps outgoing backend requests with bearer credentials and
// recovers from expired access tokens by refreshing once and replaying.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dvcrn/studymate-cli/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrSessionExpired is returned when a 401 could not be recovered by a
	// refresh. The session has been cleared by the time it is returned.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoRefreshToken means the session holds no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// RequestIDHeader carries a per-call identifier to the backend.
const RequestIDHeader = "X-Request-ID"

const refreshKey = "refresh"

// Fetcher is a drop-in replacement for http.Client.Do that attaches the
// session's bearer token and performs at most one refresh per 401.
type Fetcher struct {
	session   *session.Session
	refresher Refresher
	client    HTTPClient
	logger    *zerolog.Logger
	group     singleflight.Group
	onExpired func()
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(c HTTPClient) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithSessionExpiredHook registers fn to run once per failed refresh, after
// the session has been cleared. The CLI uses it to point at `studymate signin`.
func WithSessionExpiredHook(fn func()) Option {
	return func(f *Fetcher) { f.onExpired = fn }
}

// NewFetcher creates a fetcher bound to sess.
func NewFetcher(sess *session.Session, refresher Refresher, opts ...Option) *Fetcher {
	f := &Fetcher{
		session:   sess,
		refresher: refresher,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = NewHTTPClient(DefaultHeaderTimeout)
	}
	if f.logger == nil {
		nop := zerolog.Nop()
		f.logger = &nop
	}
	return f
}

// Session returns the session the fetcher reads credentials from.
func (f *Fetcher) Session() *session.Session {
	return f.session
}

// Do sends req with the current access token. A 401 on an authenticated
// request triggers a shared refresh and a single replay; the final response
// is returned as-is.
func (f *Fetcher) Do(req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, err
	}
	if req.Header.Get(RequestIDHeader) == "" {
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	tok, _ := f.session.Token()
	resp, err := f.send(req, tok)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || tok == nil {
		return resp, nil
	}

	f.logger.Warn().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Msg("Received 401 Unauthorized, attempting token refresh...")
	drain(resp)

	if err := f.refresh(req.Context(), tok.AccessToken); err != nil {
		return nil, err
	}

	fresh, err := f.session.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: no access token after refresh", ErrSessionExpired)
	}

	f.logger.Info().Msg("Successfully refreshed credentials, retrying request...")
	resp, err = f.send(req, fresh)
	if err != nil {
		return nil, fmt.Errorf("retry request failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		f.logger.Error().Msg("Still received 401 after token refresh, giving up")
	} else {
		f.logger.Info().Int("status_code", resp.StatusCode).Msg("Request succeeded after token refresh")
	}
	return resp, nil
}

// Refresh forces a token refresh, joining one already in flight.
func (f *Fetcher) Refresh(ctx context.Context) error {
	ch := f.group.DoChan(refreshKey, func() (any, error) {
		return nil, f.refreshNow(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refresh recovers from a 401 seen with stale. When the session already
// holds a different token another caller refreshed in the meantime.
func (f *Fetcher) refresh(ctx context.Context, stale string) error {
	if current := f.session.AccessToken(); current != "" && current != stale {
		f.logger.Debug().Msg("Token already refreshed by another request")
		return nil
	}

	ch := f.group.DoChan(refreshKey, func() (any, error) {
		if current := f.session.AccessToken(); current != "" && current != stale {
			return nil, nil
		}
		return nil, f.refreshNow(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared {
			f.logger.Debug().Msg("Joined in-flight token refresh")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshNow runs inside the singleflight group, so at most one executes.
func (f *Fetcher) refreshNow(ctx context.Context) error {
	refreshToken := f.session.RefreshToken()
	if refreshToken == "" {
		if f.session.AccessToken() == "" {
			// already cleared by an earlier failed refresh or a sign-out
			return fmt.Errorf("%w: %w", ErrSessionExpired, ErrNoRefreshToken)
		}
		return f.expire(ErrNoRefreshToken)
	}
	if f.refresher == nil {
		return f.expire(errors.New("no refresher configured"))
	}

	tokens, err := f.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		f.logger.Error().Err(err).Msg("Failed to refresh credentials after 401 error")
		return f.expire(err)
	}
	if tokens == nil || tokens.AccessToken == "" {
		return f.expire(errors.New("refresh returned an empty access token"))
	}

	nextRefresh := tokens.RefreshToken
	if nextRefresh == "" {
		nextRefresh = refreshToken
	}
	var storeErr error
	if tokens.User != nil {
		storeErr = f.session.SetAuth(tokens.User, tokens.AccessToken, nextRefresh)
	} else {
		storeErr = f.session.SetTokens(tokens.AccessToken, nextRefresh)
	}
	if storeErr != nil {
		f.logger.Warn().Err(storeErr).Msg("Refreshed tokens could not be persisted")
	}
	return nil
}

func (f *Fetcher) expire(cause error) error {
	if err := f.session.Clear(); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to clear persisted session")
	}
	f.logger.Warn().Err(cause).Msg("Session expired, credentials cleared")
	if f.onExpired != nil {
		f.onExpired()
	}
	return fmt.Errorf("%w: %w", ErrSessionExpired, cause)
}

// send issues one attempt of req. A nil tok sends it anonymously.
func (f *Fetcher) send(req *http.Request, tok *oauth2.Token) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		attempt.Body = body
	}
	if tok != nil {
		tok.SetAuthHeader(attempt)
	}
	if hasBody(req) && attempt.Header.Get("Content-Type") == "" {
		attempt.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// bufferBody makes the body replayable for requests built without GetBody.
func bufferBody(req *http.Request) error {
	if !hasBody(req) || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func hasBody(req *http.Request) bool {
	return req.Body != nil && req.Body != http.NoBody
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
