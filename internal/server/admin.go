package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dvcrn/studymate-cli/internal/auth"
	"github.com/dvcrn/studymate-cli/internal/logger"
	"github.com/dvcrn/studymate-cli/internal/session"
)

// adminMiddleware checks for valid admin API key from either
// 'Authorization: Bearer <key>' or 'X-API-Key: <key>' headers.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.logger.Error().Msg("Admin API key not configured")
			http.Error(w, "Admin API not configured", http.StatusInternalServerError)
			return
		}

		var providedToken string
		authHeader := r.Header.Get("Authorization")
		xAPIKeyHeader := r.Header.Get("X-API-Key")

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				s.logger.Warn().
					Str("method", r.Method).
					Str("uri", r.RequestURI).
					Str("remote_addr", r.RemoteAddr).
					Msg("Invalid Authorization header format for admin endpoint")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}
			providedToken = parts[1]
		} else if xAPIKeyHeader != "" {
			providedToken = xAPIKeyHeader
		} else {
			s.logger.Warn().
				Str("method", r.Method).
				Str("uri", r.RequestURI).
				Str("remote_addr", r.RemoteAddr).
				Msg("Missing required Authorization or X-API-Key header for admin endpoint")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedToken), []byte(s.adminKey)) != 1 {
			s.logger.Warn().
				Str("method", r.Method).
				Str("uri", r.RequestURI).
				Str("remote_addr", r.RemoteAddr).
				Msg("Invalid admin API key provided")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Msg("Admin request authorized")

		next.ServeHTTP(w, r)
	})
}

// sessionStatusHandler handles GET /admin/session.
func (s *Server) sessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.fetcher.Session()
	tok, err := sess.Token()
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	response := map[string]any{
		"authenticated":    true,
		"hasRefreshToken":  tok.RefreshToken != "",
		"accessTokenHint":  logger.Redact(tok.AccessToken),
		"expiresAtUnknown": true,
	}
	if user := sess.User(); user != nil {
		response["user"] = user
	}
	if !tok.Expiry.IsZero() {
		now := s.now()
		delete(response, "expiresAtUnknown")
		response["expiresAt"] = tok.Expiry.Unix()
		response["minutesUntilExpiry"] = int64(tok.Expiry.Sub(now).Minutes())
		response["isExpired"] = !tok.Expiry.After(now)
		response["needsRefreshSoon"] = auth.TokenExpiring(tok, now)
	}
	writeJSON(w, http.StatusOK, response)
}

// sessionSetHandler handles POST /admin/session for installing tokens
// obtained elsewhere, e.g. from a CLI sign-in.
func (s *Server) sessionSetHandler(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		AccessToken  string        `json:"access_token"`
		RefreshToken string        `json:"refresh_token"`
		User         *session.User `json:"user,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if reqBody.AccessToken == "" || reqBody.RefreshToken == "" {
		http.Error(w, "Missing required fields: access_token, refresh_token", http.StatusBadRequest)
		return
	}

	sess := s.fetcher.Session()
	var err error
	if reqBody.User != nil {
		err = sess.SetAuth(reqBody.User, reqBody.AccessToken, reqBody.RefreshToken)
	} else {
		err = sess.SetTokens(reqBody.AccessToken, reqBody.RefreshToken)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
		http.Error(w, "Failed to update session", http.StatusInternalServerError)
		return
	}

	s.logger.Info().Msg("Session credentials updated successfully")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Session updated successfully",
	})
}

// sessionClearHandler handles DELETE /admin/session.
func (s *Server) sessionClearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.fetcher.Session().Clear(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear session")
		http.Error(w, "Failed to clear session", http.StatusInternalServerError)
		return
	}
	s.logger.Info().Msg("Session cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Signed out"})
}

// sessionRefreshHandler handles POST /admin/session/refresh.
func (s *Server) sessionRefreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.fetcher.Refresh(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Forced refresh failed")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Tokens refreshed"})
}
