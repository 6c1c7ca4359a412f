// Package session holds the signed-in user's credentials and mirrors every
// change into a persisted credentials.Store.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dvcrn/studymate-cli/internal/credentials"
	"github.com/rs/zerolog"
)

// User is the profile returned by the backend alongside tokens.
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	LastSignInAt    string `json:"last_sign_in_at,omitempty"`
}

// Credentials is a point-in-time copy of the session state.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// Session is the single active credential set of one client. It is safe for
// concurrent use. Tests create one per case instead of sharing global state.
type Session struct {
	mu           sync.RWMutex
	store        credentials.Store
	logger       *zerolog.Logger
	accessToken  string
	refreshToken string
	user         *User
	// signedOut stops store fallback after Clear, for stores that refuse
	// deletes. Setting new credentials or a rehydrate resets it.
	signedOut bool
}

// New creates an empty session backed by store. A nil store keeps the
// session in memory only.
func New(store credentials.Store, logger *zerolog.Logger) *Session {
	if store == nil {
		store = credentials.NewMemoryStore()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Session{store: store, logger: logger}
}

// Rehydrate restores the session from the store. It only restores when the
// access token, refresh token and user are all present. A stored user that
// cannot be decoded clears the session.
func (s *Session) Rehydrate() error {
	access, _, err := s.store.Get(credentials.KeyAccessToken)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	refresh, _, err := s.store.Get(credentials.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("read refresh token: %w", err)
	}
	rawUser, _, err := s.store.Get(credentials.KeyUser)
	if err != nil {
		return fmt.Errorf("read user: %w", err)
	}

	if access == "" || refresh == "" || rawUser == "" {
		return nil
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse stored user data, clearing session")
		if clearErr := s.Clear(); clearErr != nil {
			return errors.Join(fmt.Errorf("parse stored user: %w", err), clearErr)
		}
		return fmt.Errorf("parse stored user: %w", err)
	}

	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.user = &user
	s.signedOut = false
	s.mu.Unlock()

	s.logger.Debug().Str("user_id", user.ID).Msg("Session restored from store")
	return nil
}

// SetAuth replaces the whole credential set.
func (s *Session) SetAuth(user *User, accessToken, refreshToken string) error {
	s.mu.Lock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.user = copyUser(user)
	s.signedOut = false
	s.mu.Unlock()

	return errors.Join(
		s.persistTokens(accessToken, refreshToken),
		s.persistUser(user),
	)
}

// SetTokens replaces both tokens and keeps the current user.
func (s *Session) SetTokens(accessToken, refreshToken string) error {
	s.mu.Lock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.signedOut = false
	s.mu.Unlock()

	return s.persistTokens(accessToken, refreshToken)
}

// SetUser replaces the stored profile.
func (s *Session) SetUser(user *User) error {
	s.mu.Lock()
	s.user = copyUser(user)
	s.mu.Unlock()

	return s.persistUser(user)
}

// Clear drops every credential from memory and the store, legacy keys
// included. The session stays signed out even when the store keeps its
// values, as a read-only store does.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.user = nil
	s.signedOut = true
	s.mu.Unlock()

	keys := append([]string{
		credentials.KeyAccessToken,
		credentials.KeyRefreshToken,
		credentials.KeyUser,
	}, credentials.LegacyKeys...)

	var errs []error
	for _, key := range keys {
		if err := s.store.Delete(key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// AccessToken returns the in-memory token, falling back to the store and
// then to the legacy single-token key.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	token, signedOut := s.accessToken, s.signedOut
	s.mu.RUnlock()
	if token != "" || signedOut {
		return token
	}
	return s.lookup(credentials.KeyAccessToken, credentials.LegacyKeyToken)
}

// RefreshToken returns the in-memory refresh token, falling back to the store.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	token, signedOut := s.refreshToken, s.signedOut
	s.mu.RUnlock()
	if token != "" || signedOut {
		return token
	}
	return s.lookup(credentials.KeyRefreshToken)
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

// IsAuthenticated reports whether an access token is available.
func (s *Session) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// Snapshot returns the in-memory credential set.
func (s *Session) Snapshot() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credentials{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		User:         copyUser(s.user),
	}
}

func (s *Session) lookup(keys ...string) string {
	for _, key := range keys {
		v, ok, err := s.store.Get(key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read credential from store")
			continue
		}
		if ok && v != "" {
			return v
		}
	}
	return ""
}

func (s *Session) persistTokens(accessToken, refreshToken string) error {
	var errs []error
	if err := s.store.Set(credentials.KeyAccessToken, accessToken); err != nil {
		errs = append(errs, fmt.Errorf("store access token: %w", err))
	}
	if err := s.store.Set(credentials.KeyRefreshToken, refreshToken); err != nil {
		errs = append(errs, fmt.Errorf("store refresh token: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Session) persistUser(user *User) error {
	if user == nil {
		if err := s.store.Delete(credentials.KeyUser); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.store.Set(credentials.KeyUser, string(data)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
