//go:build js && wasm

package config

import "github.com/syumai/workers/cloudflare"

// Lookup reads a Worker environment binding. Unset bindings read as missing.
func Lookup(name string) (string, bool) {
	v := cloudflare.Getenv(name)
	return v, v != ""
}
