// Package server is the local StudyMate gateway. It forwards /api/* to the
// backend with the signed-in session attached, refreshing tokens on 401, and
// exposes session administration under /admin.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dvcrn/studymate-cli/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures the gateway.
type Options struct {
	// BackendURL is the StudyMate API root requests are forwarded to.
	BackendURL string
	// AdminAPIKey guards /admin. Empty disables the admin endpoints.
	AdminAPIKey string
}

type Server struct {
	fetcher    *auth.Fetcher
	backendURL string
	adminKey   string
	router     chi.Router
	logger     zerolog.Logger
	now        func() time.Time
}

func New(logger zerolog.Logger, fetcher *auth.Fetcher, opts Options) *Server {
	s := &Server{
		fetcher:    fetcher,
		backendURL: strings.TrimRight(opts.BackendURL, "/"),
		adminKey:   opts.AdminAPIKey,
		router:     chi.NewRouter(),
		logger:     logger,
		now:        time.Now,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(s.requestIDMiddleware, s.loggingMiddleware)

	r.Get("/health", s.healthHandler)
	r.Handle("/api/*", http.HandlerFunc(s.proxyHandler))

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminMiddleware)
		r.Get("/session", s.sessionStatusHandler)
		r.Post("/session", s.sessionSetHandler)
		r.Delete("/session", s.sessionClearHandler)
		r.Post("/session/refresh", s.sessionRefreshHandler)
	})

	r.NotFound(s.notFoundHandler)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestIDMiddleware makes sure every request carries an X-Request-ID. The
// same id goes to the backend and back to the caller.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(auth.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(auth.RequestIDHeader, id)
		}
		w.Header().Set(auth.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Str("request_id", r.Header.Get(auth.RequestIDHeader)).
			Msg("Incoming request")
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"authenticated": s.fetcher.Session().IsAuthenticated(),
	})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("Unhandled route")
	http.NotFound(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
