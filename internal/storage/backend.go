package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrConflict is returned when an optimistic read-modify-write lost a race
// more times than the retry limit allows.
var ErrConflict = errors.New("storage: concurrent modification")

// UpdateFunc receives the current value of a key (nil when absent) and
// returns the value to store. Returning an error aborts the update and
// leaves the stored value untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// UpdateManyFunc is UpdateFunc over several keys. current and the returned
// slice line up with the keys passed to UpdateMany.
type UpdateManyFunc func(current [][]byte) ([][]byte, error)

// Backend is a durable key/value store. Values are opaque JSON blobs that
// are always read and written whole.
type Backend interface {
	// Get returns the value for key, or nil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Update atomically replaces the value of key with fn's result. Readers
	// never observe a partially applied update.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// UpdateMany atomically replaces the values of keys. Either every key is
	// written or none is.
	UpdateMany(ctx context.Context, keys []string, fn UpdateManyFunc) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

func singleKey(fn UpdateFunc) UpdateManyFunc {
	return func(current [][]byte) ([][]byte, error) {
		next, err := fn(current[0])
		if err != nil {
			return nil, err
		}
		return [][]byte{next}, nil
	}
}

// applyMany runs fn and checks it returned one value per key.
func applyMany(keys []string, current [][]byte, fn UpdateManyFunc) ([][]byte, error) {
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if len(next) != len(keys) {
		return nil, fmt.Errorf("update %v: got %d values for %d keys", keys, len(next), len(keys))
	}
	return next, nil
}
