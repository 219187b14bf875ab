package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

const redisMaxRetries = 5

// RedisBackend stores each key as a plain redis string under a namespace.
// Updates use WATCH/MULTI so a concurrent writer forces a retry instead of
// a lost update.
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps client. namespace is prepended to every key.
func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	return &RedisBackend{client: client, namespace: namespace}
}

// OpenRedis connects to a redis server and verifies it answers.
func OpenRedis(ctx context.Context, addr, password string, db int, namespace string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisBackend(client, namespace), nil
}

func (b *RedisBackend) key(k string) string { return b.namespace + k }

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

// Update implements Backend.
func (b *RedisBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return b.UpdateMany(ctx, []string{key}, singleKey(fn))
}

// UpdateMany implements Backend. All keys are watched and written in one
// MULTI block.
func (b *RedisBackend) UpdateMany(ctx context.Context, keys []string, fn UpdateManyFunc) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(k)
	}
	txf := func(tx *redis.Tx) error {
		current := make([][]byte, len(keys))
		for i, k := range full {
			val, err := tx.Get(ctx, k).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", keys[i], err)
			}
			current[i] = val
		}
		next, err := applyMany(keys, current, fn)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, k := range full {
				pipe.Set(ctx, k, next[i], 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := b.client.Watch(ctx, txf, full...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %v: %w", keys, ErrConflict)
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys implements Backend.
func (b *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), b.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	return keys, nil
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
