package config

import "time"

// Config is the resolved client configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Gateway GatewayConfig `yaml:"gateway"`
}

// APIConfig points at the StudyMate backend.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout bounds connecting and waiting for response headers. Response
	// bodies, streams included, are not cut off by it.
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig selects where credentials are persisted.
type SessionConfig struct {
	// Store is one of file, sqlite, keychain, env, memory.
	Store string `yaml:"store"`
	// Path is the file or database path, or the keychain service name.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// GatewayConfig configures `studymate serve`.
type GatewayConfig struct {
	Listen      string `yaml:"listen"`
	AdminAPIKey string `yaml:"admin_api_key"`
}
