// Package leveldb implements an embedded, on-disk key/value store with goleveldb.
package leveldb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/JakeFAU/sitedigger/internal/inspect"
	"github.com/JakeFAU/sitedigger/internal/storage"
)

var entryPrefix = []byte("e:")

// Store persists cache entries in a LevelDB database.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("leveldb path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Read returns the value stored for key.
func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	v, err := s.db.Get(entryKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("leveldb read %q: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: leveldb read %q: %v", inspect.ErrCacheUnavailable, key, err)
	}
	return v, nil
}

// Write replaces the value for key.
func (s *Store) Write(_ context.Context, key string, value []byte) error {
	if err := s.db.Put(entryKey(key), value, nil); err != nil {
		return fmt.Errorf("%w: leveldb write %q: %v", inspect.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.db.Delete(entryKey(key), nil); err != nil {
		return fmt.Errorf("%w: leveldb delete %q: %v", inspect.ErrCacheUnavailable, key, err)
	}
	return nil
}

// ListKeys returns every stored key in byte order.
func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	it := s.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(bytes.TrimPrefix(it.Key(), entryPrefix)))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("%w: leveldb iterate: %v", inspect.ErrCacheUnavailable, err)
	}
	return keys, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close leveldb: %w", err)
	}
	return nil
}

func entryKey(key string) []byte {
	return append(append([]byte(nil), entryPrefix...), key...)
}
