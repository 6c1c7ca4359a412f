// Package api is a typed client for the StudyMate backend. Authenticated
// calls go through auth.Fetcher; sign-in, sign-up and password recovery use a
// plain client since they carry no credentials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dvcrn/studymate-cli/internal/auth"
	"github.com/dvcrn/studymate-cli/internal/session"
	"github.com/dvcrn/studymate-cli/internal/sse"
	"github.com/rs/zerolog"
)

// Client talks to one backend.
type Client struct {
	baseURL string
	fetcher *auth.Fetcher
	raw     auth.HTTPClient
	logger  *zerolog.Logger
}

// NewClient creates a client. raw is used for anonymous endpoints and may be
// nil.
func NewClient(baseURL string, fetcher *auth.Fetcher, raw auth.HTTPClient, logger *zerolog.Logger) *Client {
	if raw == nil {
		raw = auth.NewHTTPClient(auth.DefaultHeaderTimeout)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		raw:     raw,
		logger:  logger,
	}
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session credentials are read from and written to.
func (c *Client) Session() *session.Session {
	return c.fetcher.Session()
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends an authenticated JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.fetcher.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return decodeResponse(resp, out)
}

// doAnonymous is do without credentials or refresh handling.
func (c *Client) doAnonymous(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.raw.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return decodeResponse(resp, out)
}

// download fetches a binary resource.
func (c *Client) download(ctx context.Context, path string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.fetcher.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromResponse(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Download{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
	}, nil
}

// stream posts in to an SSE endpoint and reads it to completion.
func (c *Client) stream(ctx context.Context, path string, in any, h sse.Handler) (sse.Result, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return sse.Result{}, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.fetcher.Do(req)
	if err != nil {
		return sse.Result{}, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return sse.Result{}, errorFromResponse(resp)
	}

	c.logger.Debug().Str("path", path).Msg("Reading event stream")
	res, err := sse.Read(ctx, resp.Body, h, sse.WithLogger(c.logger))
	if err != nil {
		return res, fmt.Errorf("stream %s: %w", path, err)
	}
	if !res.Done {
		c.logger.Warn().Str("path", path).Msg("Stream closed without a terminal frame, using partial result")
	}
	return res, nil
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pathID(id string) string {
	return url.PathEscape(id)
}

func filenameFromDisposition(v string) string {
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if name, ok := strings.CutPrefix(part, "filename="); ok {
			return strings.Trim(name, `"`)
		}
	}
	return ""
}
