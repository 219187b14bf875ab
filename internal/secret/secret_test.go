package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore map[string][]byte

func (m memStore) Set(key string, value []byte) error { m[key] = value; return nil }
func (m memStore) Get(key string) ([]byte, error)     { return m[key], nil }
func (m memStore) Delete(key string) error            { delete(m, key); return nil }

func TestEnvName(t *testing.T) {
	assert.Equal(t, "PAGEBUILDER_SECRET_DB_PROD", EnvName("db-prod"))
	assert.Equal(t, "PAGEBUILDER_SECRET_REDIS_1", EnvName("redis.1"))
}

func TestEnvStore(t *testing.T) {
	t.Setenv(EnvName("db"), "hunter2")
	s := NewEnvStore()

	v, err := s.Get("db")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(v))

	require.NoError(t, s.Set("other", []byte("x")))
	t.Cleanup(func() { s.Delete("other") })
	v, _ = s.Get("other")
	assert.Equal(t, "x", string(v))

	v, err = s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestChain(t *testing.T) {
	first, second := memStore{}, memStore{"k": []byte("from-second")}
	c := Chain{first, second}

	v, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "from-second", string(v))

	require.NoError(t, c.Set("k", []byte("from-first")))
	v, _ = c.Get("k")
	assert.Equal(t, "from-first", string(v))

	require.NoError(t, c.Delete("k"))
	v, _ = c.Get("k")
	assert.Nil(t, v)
}

func TestResolve(t *testing.T) {
	store := memStore{"pg": []byte("s3cret")}

	dsn, err := Resolve(store, "pg", "postgres://app:{password}@db/pages")
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:s3cret@db/pages", dsn)

	dsn, err = Resolve(store, "", "postgres://app@db/pages")
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db/pages", dsn)
}
