package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var _ Backend = (*DB)(nil)

// Get implements Backend.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, db.dialect.selectValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), nil
}

// Update implements Backend inside a single transaction.
func (db *DB) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return db.UpdateMany(ctx, []string{key}, singleKey(fn))
}

// UpdateMany implements Backend. Rows are locked in the order of keys.
func (db *DB) UpdateMany(ctx context.Context, keys []string, fn UpdateManyFunc) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current := make([][]byte, len(keys))
	for i, key := range keys {
		var value string
		err = tx.QueryRowContext(ctx, db.dialect.selectLocked, key).Scan(&value)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read %s: %w", key, err)
		default:
			current[i] = []byte(value)
		}
	}

	next, err := applyMany(keys, current, fn)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i, key := range keys {
		if _, err := tx.ExecContext(ctx, db.dialect.upsert, key, string(next[i]), now); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Delete implements Backend.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, db.dialect.deleteKey, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys implements Backend.
func (db *DB) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, db.dialect.listKeys, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		// LIKE treats '_' as a wildcard
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}
