//go:build !js || !wasm

package auth

import (
	"net"
	"net/http"
	"time"
)

// DefaultHeaderTimeout bounds connecting and waiting for response headers
// when NewHTTPClient is given no timeout.
const DefaultHeaderTimeout = 60 * time.Second

// NewHTTPClient creates a new HTTP client for regular environments.
//
// headerTimeout covers dialing, the TLS handshake and waiting for response
// headers. Reading the body is bounded only by the request context, so event
// streams can run for as long as the backend keeps sending.
func NewHTTPClient(headerTimeout time.Duration) HTTPClient {
	if headerTimeout <= 0 {
		headerTimeout = DefaultHeaderTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   headerTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = headerTimeout
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}
