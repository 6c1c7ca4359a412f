package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dvcrn/studymate-cli/internal/session"
)

// SignUp registers an account and signs it in.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*session.User, error) {
	if err := ValidateSignUp(req); err != nil {
		return nil, err
	}
	var resp AuthResponse
	if err := c.doAnonymous(ctx, http.MethodPost, "/auth/signup", req, &resp); err != nil {
		return nil, err
	}
	return c.storeAuth(&resp)
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.User, error) {
	if err := ValidateSignIn(email, password); err != nil {
		return nil, err
	}
	var resp AuthResponse
	if err := c.doAnonymous(ctx, http.MethodPost, "/auth/signin", signInRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.storeAuth(&resp)
}

// SignOut forgets every stored credential. The backend keeps no session
// state to revoke.
func (c *Client) SignOut() error {
	if err := c.Session().Clear(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	c.logger.Info().Msg("Signed out, credentials cleared")
	return nil
}

// Refresh forces a token refresh outside the 401 path.
func (c *Client) Refresh(ctx context.Context) error {
	return c.fetcher.Refresh(ctx)
}

// Me fetches the current user and updates the stored profile.
func (c *Client) Me(ctx context.Context) (*session.User, error) {
	var user session.User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	if err := c.Session().SetUser(&user); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist user profile")
	}
	return &user, nil
}

// UpdateProfile changes profile fields.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*session.User, error) {
	var user session.User
	if err := c.do(ctx, http.MethodPut, "/me", update, &user); err != nil {
		return nil, err
	}
	if err := c.Session().SetUser(&user); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist user profile")
	}
	return &user, nil
}

// ForgotPassword requests a reset link by email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	var resp MessageResponse
	if err := c.doAnonymous(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetPassword sets a new password using the emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, password, confirm string) (*MessageResponse, error) {
	if err := ValidateReset(token, password, confirm); err != nil {
		return nil, err
	}
	body := map[string]string{"token": token, "new_password": password}
	var resp MessageResponse
	if err := c.doAnonymous(ctx, http.MethodPost, "/auth/reset-password", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) storeAuth(resp *AuthResponse) (*session.User, error) {
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("auth response carried no access token")
	}
	if err := c.Session().SetAuth(resp.User, resp.AccessToken, resp.RefreshToken); err != nil {
		// the in-memory session is usable even if persisting failed
		c.logger.Warn().Err(err).Msg("Failed to persist credentials")
	}
	if resp.User != nil {
		c.logger.Info().Str("user_id", resp.User.ID).Str("email", resp.User.Email).Msg("Signed in")
	}
	return resp.User, nil
}
