package secret

import "strings"

// SecretStore provides a pluggable interface for sensitive data such as
// backend passwords. Implementations: macOS Keychain and environment
// variables.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// Chain reads from the first store that has a key. Writes go to the first
// store only.
type Chain []SecretStore

func (c Chain) Get(key string) ([]byte, error) {
	for _, s := range c {
		v, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		if len(v) > 0 {
			return v, nil
		}
	}
	return nil, nil
}

func (c Chain) Set(key string, value []byte) error {
	if len(c) == 0 {
		return nil
	}
	return c[0].Set(key, value)
}

func (c Chain) Delete(key string) error {
	for _, s := range c {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Resolve replaces the {password} placeholder in dsn with the secret stored
// under key. An empty key returns dsn unchanged.
func Resolve(store SecretStore, key, dsn string) (string, error) {
	if key == "" {
		return dsn, nil
	}
	v, err := store.Get(key)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(dsn, "{password}", string(v)), nil
}
