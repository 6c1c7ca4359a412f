//go:build js && wasm

package auth

import (
	"time"

	"github.com/syumai/workers/cloudflare/fetch"
)

// NewHTTPClient creates an HTTP client backed by the Workers fetch API. The
// Workers runtime owns connection timeouts, so headerTimeout is unused.
func NewHTTPClient(headerTimeout time.Duration) HTTPClient {
	return fetch.NewClient().HTTPClient(fetch.RedirectModeFollow)
}
