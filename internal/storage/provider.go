// Package storage holds the key/value persistence backends behind the
// inspection cache. Each backend implements inspect.KVStore; a missing key is
// reported as ErrNotFound and any other failure wraps inspect.ErrCacheUnavailable.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when a key has no value.
var ErrNotFound = errors.New("key not found")

// NoOpStore discards writes and never finds anything. It is used when
// persistence is disabled.
type NoOpStore struct{}

// Read always reports ErrNotFound.
func (NoOpStore) Read(_ context.Context, _ string) ([]byte, error) {
	return nil, ErrNotFound
}

// Write does nothing.
func (NoOpStore) Write(_ context.Context, _ string, _ []byte) error {
	return nil
}

// Delete does nothing.
func (NoOpStore) Delete(_ context.Context, _ string) error {
	return nil
}

// ListKeys returns no keys.
func (NoOpStore) ListKeys(_ context.Context) ([]string, error) {
	return nil, nil
}

// Close does nothing.
func (NoOpStore) Close() error {
	return nil
}
