package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitedigger/internal/storage"
)

func TestStoreRoundTripCopiesData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	payload := []byte("content")
	require.NoError(t, store.Write(ctx, "https://example.com", payload))
	payload[0] = 'C'

	got, err := store.Read(ctx, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "content", string(got))

	got[0] = 'X'
	again, err := store.Read(ctx, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "content", string(again))
}

func TestStoreMissingKey(t *testing.T) {
	t.Parallel()

	_, err := New().Read(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreDeleteAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	require.NoError(t, store.Write(ctx, "b", []byte("2")))
	require.NoError(t, store.Write(ctx, "a", []byte("1")))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "missing"))
	keys, err = store.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, keys)
}
