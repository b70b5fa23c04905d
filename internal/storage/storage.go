// Package storage persists namespaced key/value settings as JSON documents.
//
// Every Store is scoped to one namespace, so several bots (or extensions of one bot) can
// share a database without seeing each other's keys.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Store is a namespaced key/value store. Values are raw JSON.
type Store interface {
	// Get returns the value for key. ok is false if the key does not exist.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// GetMany returns the values of every key that exists.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Open opens the store for driver and applies pending migrations.
func Open(ctx context.Context, driver, dsn, namespace string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, dsn, namespace)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn, namespace)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// GetJSON decodes the value stored under key into a T. fallback is returned when the key
// does not exist.
func GetJSON[T any](ctx context.Context, s Store, key string, fallback T) (T, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
