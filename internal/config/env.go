//go:build !js || !wasm

package config

import "os"

// Lookup reads an environment variable.
func Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}
