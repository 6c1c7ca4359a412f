package credentials

import "os"

// envKeys maps store keys to the environment variables that back them.
var envKeys = map[string]string{
	KeyAccessToken:  "STUDYMATE_ACCESS_TOKEN",
	KeyRefreshToken: "STUDYMATE_REFRESH_TOKEN",
	KeyUser:         "STUDYMATE_USER",
}

// EnvStore reads credentials from environment variables. It is read-only.
type EnvStore struct{}

// NewEnvStore creates a new environment-based credentials store
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

// Get returns the value of the environment variable mapped to key
func (e *EnvStore) Get(key string) (string, bool, error) {
	name, ok := envKeys[key]
	if !ok {
		return "", false, nil
	}
	v := os.Getenv(name)
	return v, v != "", nil
}

func (e *EnvStore) Set(key, value string) error {
	return ErrReadOnly
}

func (e *EnvStore) Delete(key string) error {
	return ErrReadOnly
}
