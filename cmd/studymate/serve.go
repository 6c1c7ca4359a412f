package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/dvcrn/studymate-cli/internal/app"
)

func (c *cli) serveCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("serve")
	listen := fs.String("listen", "", "listen address (default from config, 127.0.0.1:9879)")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		addr := *listen
		if addr == "" {
			addr = a.Config.Gateway.Listen
		}
		if a.Config.Gateway.AdminAPIKey == "" {
			a.Logger.Warn().Msg("ADMIN_API_KEY not set, /admin endpoints are disabled")
		}
		a.LogSessionStatus()

		srv := &http.Server{Addr: addr, Handler: a.Server()}
		errCh := make(chan error, 1)
		go func() {
			a.Logger.Info().Str("addr", addr).Str("backend", a.Config.API.BaseURL).Msg("Starting gateway")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen: %w", err)
			}
			close(errCh)
		}()

		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.Logger.Info().Msg("Gateway stopped")
		return nil
	})
}

func (c *cli) versionCmd() {
	if c.isTerminal() {
		fmt.Fprintln(c.stdout, figure.NewFigure("studymate", "cybermedium", true).String())
	}
	fmt.Fprintln(c.stdout, "studymate "+Version)
}
