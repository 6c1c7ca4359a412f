//go:build !js || !wasm

package credentials

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Store kinds accepted by Open.
const (
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindKeychain = "keychain"
	KindEnv      = "env"
	KindMemory   = "memory"
)

// Open builds the store named by kind. path is used by the file and sqlite
// kinds, and as the keychain service name when set.
func Open(ctx context.Context, kind, path string, logger zerolog.Logger) (Store, error) {
	switch kind {
	case "", KindFile:
		if path == "" {
			path = ResolveStorePath()
		}
		return NewFSStore(path), nil
	case KindSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return OpenSQLiteStore(ctx, path)
	case KindKeychain:
		return NewKeychainStoreWithLogger(path, logger), nil
	case KindEnv:
		return NewEnvStore(), nil
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown credentials store %q", kind)
	}
}
