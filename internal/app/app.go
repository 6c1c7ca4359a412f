// Package app wires configuration, the credentials store, the session and
// the API client together. The CLI, the gateway and the worker share it.
package app

import (
	"io"
	"time"

	"github.com/dvcrn/studymate-cli/internal/api"
	"github.com/dvcrn/studymate-cli/internal/auth"
	"github.com/dvcrn/studymate-cli/internal/config"
	"github.com/dvcrn/studymate-cli/internal/credentials"
	"github.com/dvcrn/studymate-cli/internal/server"
	"github.com/dvcrn/studymate-cli/internal/session"
	"github.com/rs/zerolog"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Session *session.Session
	Fetcher *auth.Fetcher
	Client  *api.Client

	store credentials.Store
}

// New builds an App over store and restores any persisted session.
// onExpired runs once per failed refresh, after the session is cleared; it
// may be nil.
func New(cfg *config.Config, store credentials.Store, log zerolog.Logger, onExpired func()) *App {
	a := &App{Config: cfg, Logger: log, store: store}
	a.Session = session.New(store, &a.Logger)
	if err := a.Session.Rehydrate(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to restore session, starting signed out")
	}

	client := auth.NewHTTPClient(cfg.API.Timeout)
	a.Fetcher = auth.NewFetcher(a.Session,
		auth.NewHTTPRefresher(cfg.API.BaseURL, client),
		auth.WithHTTPClient(client),
		auth.WithLogger(&a.Logger),
		auth.WithSessionExpiredHook(onExpired),
	)
	a.Client = api.NewClient(cfg.API.BaseURL, a.Fetcher, client, &a.Logger)
	return a
}

// Server returns the gateway for this App.
func (a *App) Server() *server.Server {
	return server.New(a.Logger, a.Fetcher, server.Options{
		BackendURL:  a.Config.API.BaseURL,
		AdminAPIKey: a.Config.Gateway.AdminAPIKey,
	})
}

// Close releases the credentials store when it holds resources.
func (a *App) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// LogSessionStatus reports the restored session at startup.
func (a *App) LogSessionStatus() {
	tok, err := a.Session.Token()
	if err != nil {
		a.Logger.Warn().Msg("⚠️  No stored session, sign in with `studymate signin`")
		return
	}

	event := a.Logger.Info().Bool("has_refresh_token", tok.RefreshToken != "")
	if user := a.Session.User(); user != nil {
		event = event.Str("user_id", user.ID)
	}
	event.Msg("✅ Session loaded successfully")

	if tok.Expiry.IsZero() {
		return
	}
	minutesUntilExpiry := int64(time.Until(tok.Expiry).Minutes())
	switch {
	case !tok.Valid():
		a.Logger.Warn().
			Int64("minutes_expired", -minutesUntilExpiry).
			Msg("⚠️  Token is already expired, will attempt refresh on first request")
	case auth.TokenExpiring(tok, time.Now()):
		a.Logger.Warn().
			Int64("minutes_until_expiry", minutesUntilExpiry).
			Msg("⚠️  Token expires soon, will refresh shortly")
	default:
		a.Logger.Info().
			Int64("minutes_until_expiry", minutesUntilExpiry).
			Msg("✅ Token is valid and not expiring soon")
	}
}
