// Package config resolves client settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 60 * time.Second
	DefaultListen  = "127.0.0.1:9879"
	DefaultStore   = "file"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var validStores = map[string]bool{"file": true, "sqlite": true, "keychain": true, "env": true, "memory": true}

// DefaultPath is $XDG_CONFIG_HOME/studymate/config.yaml.
func DefaultPath() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, "studymate", "config.yaml")
}

// LoadDotEnv loads .env style files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load resolves the configuration. An empty path falls back to DefaultPath,
// which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Config
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// FromEnv resolves the configuration from the environment alone, for hosts
// without a filesystem such as the Workers runtime.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := Lookup("STUDYMATE_API_URL"); ok && v != "" {
		cfg.API.BaseURL = v
	} else if v, ok := Lookup("NEXT_PUBLIC_API_URL"); ok && v != "" && cfg.API.BaseURL == "" {
		cfg.API.BaseURL = v
	}
	if v, ok := Lookup("STUDYMATE_API_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STUDYMATE_API_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}
	if v, ok := Lookup("STUDYMATE_SESSION_STORE"); ok && v != "" {
		cfg.Session.Store = v
	}
	if v, ok := Lookup("STUDYMATE_SESSION_PATH"); ok && v != "" {
		cfg.Session.Path = v
	}
	if v, ok := Lookup("STUDYMATE_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	} else if v, ok := Lookup("LOG_LEVEL"); ok && v != "" && cfg.Log.Level == "" {
		cfg.Log.Level = v
	}
	if v, ok := Lookup("STUDYMATE_LISTEN"); ok && v != "" {
		cfg.Gateway.Listen = v
	} else if v, ok := Lookup("PORT"); ok && v != "" && cfg.Gateway.Listen == "" {
		cfg.Gateway.Listen = ":" + v
	}
	if v, ok := Lookup("ADMIN_API_KEY"); ok && v != "" {
		cfg.Gateway.AdminAPIKey = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultTimeout
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = DefaultStore
	}
	cfg.Session.Store = strings.ToLower(cfg.Session.Store)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Gateway.Listen == "" {
		cfg.Gateway.Listen = DefaultListen
	}
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL (got %q)", cfg.API.BaseURL)
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if !validStores[cfg.Session.Store] {
		return fmt.Errorf("session.store must be one of: file, sqlite, keychain, env, memory (got %q)", cfg.Session.Store)
	}
	if cfg.Session.Store == "sqlite" && cfg.Session.Path == "" {
		return fmt.Errorf("session.path is required for the sqlite store")
	}
	validLogLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of: trace, debug, info, warn, error (got %q)", cfg.Log.Level)
	}
	if matches := envVarPattern.FindStringSubmatch(cfg.Gateway.AdminAPIKey); len(matches) > 1 {
		return fmt.Errorf("gateway.admin_api_key: environment variable ${%s} is not set", matches[1])
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := Lookup(varName); exists {
			return value
		}
		return match
	})
}
