// Package cache stores inspection results keyed by normalized URL on top of a
// pluggable key/value backend. The store records write and read times but
// never judges freshness; that is the caller's decision.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigger/internal/inspect"
	"github.com/JakeFAU/sitedigger/internal/storage"
)

// Store wraps a KVStore with CacheEntry encoding and access tracking.
// Writes for one key are serialized within a Store.
type Store struct {
	kv     inspect.KVStore
	clock  inspect.Clock
	logger *zap.Logger
	locks  keyLocks
}

// EntryInfo summarizes a cached entry without its payload.
type EntryInfo struct {
	Key            string    `json:"key"`
	StoredAt       time.Time `json:"storedAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	FetchedAt      time.Time `json:"fetchedAt"`
}

// New builds a Store.
func New(kv inspect.KVStore, clock inspect.Clock, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, clock: clock, logger: logger}
}

// Get returns the entry for key and marks it as accessed now. A missing key
// yields ok=false with a nil error; backend failures wrap
// inspect.ErrCacheUnavailable.
//
// The access time is only written back if the entry still carries the
// StoredAt that was read, so a replacement stored meanwhile (possibly by
// another Store on the same backend) is never rolled back.
func (s *Store) Get(ctx context.Context, key string) (inspect.CacheEntry, bool, error) {
	unlock := s.locks.lock(key)
	defer unlock()

	entry, ok, err := s.Peek(ctx, key)
	if err != nil || !ok {
		return inspect.CacheEntry{}, false, err
	}
	return s.touch(ctx, key, entry), true, nil
}

// touch stamps LastAccessedAt on the stored copy of entry and returns the
// stamped entry, or entry unchanged when the stored copy was replaced.
func (s *Store) touch(ctx context.Context, key string, entry inspect.CacheEntry) inspect.CacheEntry {
	current, ok, err := s.Peek(ctx, key)
	if err != nil {
		s.logger.Warn("failed to record cache access", zap.String("key", key), zap.Error(err))
		return entry
	}
	if !ok || !current.StoredAt.Equal(entry.StoredAt) {
		s.logger.Debug("cache entry replaced during read, skipping access update", zap.String("key", key))
		return entry
	}

	current.LastAccessedAt = s.clock.Now()
	if current.LastAccessedAt.Before(current.StoredAt) {
		current.LastAccessedAt = current.StoredAt
	}
	if err := s.write(ctx, current); err != nil {
		s.logger.Warn("failed to record cache access", zap.String("key", key), zap.Error(err))
	}
	return current
}

// Peek returns the entry for key without touching its access time.
func (s *Store) Peek(ctx context.Context, key string) (inspect.CacheEntry, bool, error) {
	data, err := s.kv.Read(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return inspect.CacheEntry{}, false, nil
	}
	if err != nil {
		if !errors.Is(err, inspect.ErrCacheUnavailable) {
			err = fmt.Errorf("%w: %v", inspect.ErrCacheUnavailable, err)
		}
		return inspect.CacheEntry{}, false, err
	}

	var entry inspect.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return inspect.CacheEntry{}, false, fmt.Errorf("%w: decode entry %q: %v", inspect.ErrCacheUnavailable, key, err)
	}
	if entry.Key == "" {
		entry.Key = key
	}
	return entry, true, nil
}

// Set replaces the entry for key with result, stamped with the current time.
func (s *Store) Set(ctx context.Context, key string, result inspect.Result) (inspect.CacheEntry, error) {
	unlock := s.locks.lock(key)
	defer unlock()

	now := s.clock.Now()
	entry := inspect.CacheEntry{
		Key:            key,
		Result:         result,
		StoredAt:       now,
		LastAccessedAt: now,
	}
	if err := s.write(ctx, entry); err != nil {
		return inspect.CacheEntry{}, err
	}
	return entry, nil
}

// Invalidate removes the entry for key.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	unlock := s.locks.lock(key)
	defer unlock()

	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidate %q: %w", key, err)
	}
	return nil
}

// Clear removes every entry and returns how many keys were deleted.
func (s *Store) Clear(ctx context.Context) (int, error) {
	keys, err := s.kv.ListKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	removed := 0
	for _, k := range keys {
		unlock := s.locks.lock(k)
		err := s.kv.Delete(ctx, k)
		unlock()
		if err != nil {
			return removed, fmt.Errorf("clear %q: %w", k, err)
		}
		removed++
	}
	return removed, nil
}

// Entries lists every readable entry. Undecodable entries are skipped.
func (s *Store) Entries(ctx context.Context) ([]EntryInfo, error) {
	keys, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	out := make([]EntryInfo, 0, len(keys))
	for _, k := range keys {
		entry, ok, err := s.Peek(ctx, k)
		if err != nil {
			s.logger.Debug("skipping unreadable cache entry", zap.String("key", k), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		out = append(out, EntryInfo{
			Key:            entry.Key,
			StoredAt:       entry.StoredAt,
			LastAccessedAt: entry.LastAccessedAt,
			FetchedAt:      entry.Result.FetchedAt,
		})
	}
	return out, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	if err := s.kv.Close(); err != nil {
		return fmt.Errorf("close cache backend: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, entry inspect.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode entry %q: %v", inspect.ErrCacheUnavailable, entry.Key, err)
	}
	if err := s.kv.Write(ctx, entry.Key, data); err != nil {
		if !errors.Is(err, inspect.ErrCacheUnavailable) {
			err = fmt.Errorf("%w: %v", inspect.ErrCacheUnavailable, err)
		}
		return err
	}
	return nil
}

// keyLocks hands out one mutex per key, dropping it once no caller holds it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (l *keyLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.Lock()
	return func() {
		kl.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
