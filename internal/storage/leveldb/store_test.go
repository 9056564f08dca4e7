package leveldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitedigger/internal/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	_, err = store.Read(ctx, "https://example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Write(ctx, "https://example.com", []byte("one")))
	require.NoError(t, store.Write(ctx, "https://example.com", []byte("two")))
	require.NoError(t, store.Write(ctx, "https://a.example.com", []byte("three")))

	got, err := store.Read(ctx, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "two", string(got))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example.com", "https://example.com"}, keys)

	require.NoError(t, store.Delete(ctx, "https://example.com"))
	_, err = store.Read(ctx, "https://example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, "k", []byte("v")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, reopened.Close()) })
	got, err := reopened.Read(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("")
	require.Error(t, err)
}
