// Package local implements a filesystem-backed key/value store.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JakeFAU/sitedigger/internal/hash/sha256"
	"github.com/JakeFAU/sitedigger/internal/inspect"
	"github.com/JakeFAU/sitedigger/internal/storage"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory where entries will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// envelope stores the caller's key next to the value so ListKeys can recover it.
type envelope struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Store writes one JSON file per key, named by the key's SHA-256 digest.
type Store struct {
	baseDir string
	hasher  *sha256.Hasher
}

// New creates a local filesystem store, creating BaseDir if needed.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir, hasher: sha256.New()}, nil
}

// Read loads the value stored for key.
func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("local read %q: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: local read %q: %v", inspect.ErrCacheUnavailable, key, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %v", inspect.ErrCacheUnavailable, key, err)
	}
	return env.Value, nil
}

// Write replaces the file for key. The write goes through a temp file and a
// rename so readers never see a partial entry.
func (s *Store) Write(_ context.Context, key string, value []byte) error {
	data, err := json.Marshal(envelope{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", inspect.ErrCacheUnavailable, key, err)
	}
	tmp, err := os.CreateTemp(s.baseDir, ".entry-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", inspect.ErrCacheUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %v", inspect.ErrCacheUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", inspect.ErrCacheUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename entry: %v", inspect.ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes the file for key; deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: local delete %q: %v", inspect.ErrCacheUnavailable, key, err)
	}
	return nil
}

// ListKeys returns the keys of every readable entry, sorted.
func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", inspect.ErrCacheUnavailable, err)
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Key == "" {
			continue
		}
		keys = append(keys, env.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close does nothing for the filesystem store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, s.hasher.HashKey(key)+".json")
}
