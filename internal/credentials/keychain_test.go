package credentials

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeychainStoreDefaults(t *testing.T) {
	store := NewKeychainStore("")

	assert.Equal(t, DefaultKeychainService, store.service)
	assert.Equal(t, 5*time.Minute, store.cacheTTL)
	assert.NotNil(t, store.cache)
}

func TestKeychainStoreCachesReads(t *testing.T) {
	store := NewKeychainStore("test-service")
	var calls []string
	store.run = func(args ...string) ([]byte, error) {
		calls = append(calls, strings.Join(args, " "))
		return []byte("secret\n"), nil
	}

	v, ok, err := store.Get(KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret", v)

	_, _, err = store.Get(KeyAccessToken)
	require.NoError(t, err)
	assert.Len(t, calls, 1, "second read should hit the cache")
	assert.Contains(t, calls[0], "-s test-service -a access_token")
}

func TestKeychainStoreSetUpdatesCache(t *testing.T) {
	store := NewKeychainStore("test-service")
	var last []string
	store.run = func(args ...string) ([]byte, error) {
		last = args
		if args[0] == "find-generic-password" {
			return nil, errors.New("should not be called")
		}
		return nil, nil
	}

	require.NoError(t, store.Set(KeyRefreshToken, "r1"))
	assert.Equal(t, "add-generic-password", last[0])
	assert.Contains(t, last, "-U")

	v, ok, err := store.Get(KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r1", v)
}

func TestKeychainStoreSurfacesErrors(t *testing.T) {
	store := NewKeychainStore("test-service")
	store.run = func(args ...string) ([]byte, error) {
		return nil, errors.New("security unavailable")
	}

	_, _, err := store.Get(KeyUser)
	assert.Error(t, err)
	assert.Error(t, store.Delete(KeyUser))
}
