//go:build js && wasm

package main

import (
	"github.com/dvcrn/studymate-cli/internal/app"
	"github.com/dvcrn/studymate-cli/internal/config"
	"github.com/dvcrn/studymate-cli/internal/credentials"
	"github.com/dvcrn/studymate-cli/internal/logger"
	"github.com/syumai/workers"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log = logger.WithLevel(log, cfg.Log.Level)

	binding, _ := config.Lookup("STUDYMATE_KV_BINDING")
	store, err := credentials.NewCloudflareKVStore(binding)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV store")
	}
	log.Info().Msg("📦 Using Cloudflare KV session store")

	a := app.New(cfg, store, log, nil)
	a.LogSessionStatus()

	workers.Serve(a.Server())
}
