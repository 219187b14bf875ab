package secret

import (
	"os"
	"strings"
)

// EnvStore reads secrets from PAGEBUILDER_SECRET_<KEY> environment
// variables. Key characters other than letters and digits become '_'.
type EnvStore struct {
	getenv func(string) string
	setenv func(string, string) error
	unset  func(string) error
}

// NewEnvStore returns an EnvStore over the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{getenv: os.Getenv, setenv: os.Setenv, unset: os.Unsetenv}
}

// EnvName returns the variable name that holds key.
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString("PAGEBUILDER_SECRET_")
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	v := e.getenv(EnvName(key))
	if v == "" {
		return nil, nil
	}
	return []byte(v), nil
}

func (e *EnvStore) Set(key string, value []byte) error {
	return e.setenv(EnvName(key), string(value))
}

func (e *EnvStore) Delete(key string) error {
	return e.unset(EnvName(key))
}
