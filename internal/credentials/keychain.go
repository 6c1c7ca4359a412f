//go:build !js || !wasm

package credentials

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultKeychainService is the generic-password service entries are stored under.
const DefaultKeychainService = "studymate-session"

// KeychainStore keeps each credential as a macOS keychain generic password,
// one entry per key, with a short read cache in front of the security CLI.
type KeychainStore struct {
	service  string
	mu       sync.RWMutex
	cache    map[string]cachedValue
	cacheTTL time.Duration
	run      func(args ...string) ([]byte, error)
	logger   *zerolog.Logger
}

type cachedValue struct {
	value   string
	ok      bool
	fetched time.Time
}

// NewKeychainStore creates a new keychain-based credentials store
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{
		service:  service,
		cache:    make(map[string]cachedValue),
		cacheTTL: 5 * time.Minute,
		run:      runSecurity,
	}
}

// NewKeychainStoreWithLogger creates a new keychain-based credentials store with logger
func NewKeychainStoreWithLogger(service string, logger zerolog.Logger) *KeychainStore {
	k := NewKeychainStore(service)
	k.logger = &logger
	return k
}

// Get reads a credential from cache or keychain
func (k *KeychainStore) Get(key string) (string, bool, error) {
	k.mu.RLock()
	if c, ok := k.cache[key]; ok && time.Since(c.fetched) < k.cacheTTL {
		k.mu.RUnlock()
		return c.value, c.ok, nil
	}
	k.mu.RUnlock()

	out, err := k.run("find-generic-password", "-s", k.service, "-a", key, "-w")
	if err != nil {
		var exitErr *exec.ExitError
		// security exits 44 when the item does not exist
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
			k.remember(key, "", false)
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to retrieve %s from Keychain: %w", key, err)
	}

	value := strings.TrimRight(string(out), "\n")
	k.remember(key, value, true)
	return value, true, nil
}

// Set writes a credential, replacing any existing entry
func (k *KeychainStore) Set(key, value string) error {
	if _, err := k.run("add-generic-password", "-s", k.service, "-a", key, "-w", value, "-U"); err != nil {
		return fmt.Errorf("failed to update keychain: %w", err)
	}
	k.remember(key, value, true)
	if k.logger != nil {
		k.logger.Debug().Str("key", key).Msg("🔑 Stored credential in keychain")
	}
	return nil
}

// Delete removes a credential. Missing entries are not an error.
func (k *KeychainStore) Delete(key string) error {
	if _, err := k.run("delete-generic-password", "-s", k.service, "-a", key); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 44 {
			return fmt.Errorf("failed to delete %s from keychain: %w", key, err)
		}
	}
	k.remember(key, "", false)
	return nil
}

func (k *KeychainStore) remember(key, value string, ok bool) {
	k.mu.Lock()
	k.cache[key] = cachedValue{value: value, ok: ok, fetched: time.Now()}
	k.mu.Unlock()
}

func runSecurity(args ...string) ([]byte, error) {
	return exec.Command("security", args...).Output()
}
