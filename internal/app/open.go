//go:build !js || !wasm

package app

import (
	"context"
	"fmt"

	"github.com/dvcrn/studymate-cli/internal/config"
	"github.com/dvcrn/studymate-cli/internal/credentials"
	"github.com/rs/zerolog"
)

// Open builds an App with the credentials store named in cfg.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, onExpired func()) (*App, error) {
	store, err := credentials.Open(ctx, cfg.Session.Store, cfg.Session.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open credentials store: %w", err)
	}
	log.Debug().Str("store", cfg.Session.Store).Msg("Credentials store opened")
	return New(cfg, store, log, onExpired), nil
}
