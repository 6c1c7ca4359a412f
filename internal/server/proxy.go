package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dvcrn/studymate-cli/internal/auth"
)

// forwardedHeaders are copied from the caller to the backend. Authorization
// is never forwarded; the gateway's session supplies it.
var forwardedHeaders = []string{"Content-Type", "Accept", "Accept-Language", auth.RequestIDHeader}

var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

// sseFlushWriter wraps a ResponseWriter to flush after each write.
type sseFlushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw sseFlushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil {
		fw.f.Flush()
	}
	return n, err
}

func (s *Server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api")
	if path == "" {
		path = "/"
	}
	target := s.backendURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	upstream, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating upstream request")
		http.Error(w, "Failed to create upstream request", http.StatusInternalServerError)
		return
	}
	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			upstream.Header.Set(name, v)
		}
	}

	resp, err := s.fetcher.Do(upstream)
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			s.logger.Warn().Err(err).Msg("Session expired while proxying, sign in again")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Session expired. Please sign in again."})
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error().Err(err).Str("path", path).Msg("Error making request to StudyMate backend")
		http.Error(w, "Failed to communicate with upstream API: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	isSSE := strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream")
	if isSSE {
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
	}
	w.WriteHeader(resp.StatusCode)

	flusher, canFlush := w.(http.Flusher)
	if isSSE && canFlush {
		if err := PassThroughSSEStream(resp.Body, sseFlushWriter{w: w, f: flusher}); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Str("path", path).Msg("Error streaming SSE response")
		}
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Error copying response body")
	}
}

// PassThroughSSEStream copies SSE events from r to w, one Write per event.
// Every data line keeps its own "data: " prefix. Comments and other fields
// are dropped.
func PassThroughSSEStream(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var dataLines [][]byte
	flushEvent := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		var event bytes.Buffer
		for _, line := range dataLines {
			if len(line) == 0 {
				continue
			}
			event.WriteString("data: ")
			event.Write(line)
			event.WriteByte('\n')
		}
		dataLines = dataLines[:0]

		if event.Len() == 0 {
			return nil
		}
		event.WriteByte('\n')
		_, err := w.Write(event.Bytes())
		return err
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			if err := flushEvent(); err != nil {
				return err
			}
			continue
		}
		if bytes.HasPrefix(line, []byte(":")) {
			continue
		}
		if payload, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			// only the single optional space after the colon is trimmed
			if len(payload) > 0 && payload[0] == ' ' {
				payload = payload[1:]
			}
			dataLines = append(dataLines, bytes.Clone(payload))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flushEvent()
}
