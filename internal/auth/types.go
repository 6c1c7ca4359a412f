package auth

import "github.com/dvcrn/studymate-cli/internal/session"

// TokenResponse is the body returned by /auth/signin, /auth/signup and
// /auth/refresh. Refresh responses may omit the user.
type TokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"`
	User         *session.User `json:"user,omitempty"`
}

// RefreshRequest is the body sent to /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
