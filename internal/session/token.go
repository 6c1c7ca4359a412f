package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned when no access token is available.
var ErrNoSession = errors.New("no active session")

// Token implements oauth2.TokenSource over the current session. Expiry comes
// from the exp claim of a JWT access token, read without verifying the
// signature; the backend stays the authority on validity. Opaque tokens and
// tokens without exp leave Expiry zero, which oauth2 treats as never expiring.
func (s *Session) Token() (*oauth2.Token, error) {
	access := s.AccessToken()
	if access == "" {
		return nil, ErrNoSession
	}
	tok := &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken(),
	}
	if exp, ok := tokenExpiry(access); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

var _ oauth2.TokenSource = (*Session)(nil)

func tokenExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
