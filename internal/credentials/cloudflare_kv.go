//go:build js && wasm

package credentials

import (
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

// DefaultKVBinding is the namespace binding configured in wrangler.toml.
const DefaultKVBinding = "studymate_session_kv"

// CloudflareKVStore keeps credentials in a Cloudflare Workers KV namespace
type CloudflareKVStore struct {
	kvStore *kv.Namespace
	prefix  string
}

// NewCloudflareKVStore creates a new Cloudflare KV-based credentials store
func NewCloudflareKVStore(binding string) (*CloudflareKVStore, error) {
	if binding == "" {
		binding = DefaultKVBinding
	}
	// In Cloudflare Workers, KV namespaces are accessed via bindings
	kvStore, err := kv.NewNamespace(binding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &CloudflareKVStore{kvStore: kvStore, prefix: "studymate:"}, nil
}

// Get reads a credential from KV
func (c *CloudflareKVStore) Get(key string) (string, bool, error) {
	value, err := c.kvStore.GetString(c.prefix+key, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s from KV: %w", key, err)
	}
	// Missing keys come back as an empty or null-rendered string
	if value == "" || value == "<null>" {
		return "", false, nil
	}
	return value, true, nil
}

// Set stores a credential in KV
func (c *CloudflareKVStore) Set(key, value string) error {
	if err := c.kvStore.PutString(c.prefix+key, value, nil); err != nil {
		return fmt.Errorf("failed to store %s in KV: %w", key, err)
	}
	return nil
}

// Delete removes a credential from KV
func (c *CloudflareKVStore) Delete(key string) error {
	if err := c.kvStore.Delete(c.prefix + key); err != nil {
		return fmt.Errorf("failed to delete %s from KV: %w", key, err)
	}
	return nil
}
