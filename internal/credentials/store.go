package credentials

import "errors"

// Keys written by the session layer.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Legacy single-token keys left behind by older clients. They are read as a
// fallback and removed on sign-out.
const (
	LegacyKeyToken     = "token"
	LegacyKeyTokenType = "tokenType"
	LegacyKeyUsername  = "username"
	LegacyKeyUserID    = "userId"
)

// LegacyKeys lists every legacy key in removal order.
var LegacyKeys = []string{LegacyKeyToken, LegacyKeyTokenType, LegacyKeyUsername, LegacyKeyUserID}

// ErrReadOnly is returned by stores that cannot persist changes.
var ErrReadOnly = errors.New("credentials store is read-only")

// Store is a persisted string key-value store holding session credentials.
// Get reports ok=false for a missing key without an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
