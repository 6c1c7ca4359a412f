package api

import (
	"context"
	"net/http"
)

func (c *Client) UserStats(ctx context.Context) (*UserStats, error) {
	var out UserStats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminStats(ctx context.Context) (*AdminStats, error) {
	var out AdminStats
	if err := c.do(ctx, http.MethodGet, "/admin/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks the backend without credentials.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.doAnonymous(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
