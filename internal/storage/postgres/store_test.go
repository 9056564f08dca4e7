package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitedigger/internal/inspect"
	"github.com/JakeFAU/sitedigger/internal/storage"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS inspection_cache").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	store, err := NewWithPool(context.Background(), mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestNewWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(context.Background(), mock, "cache; DROP TABLE x")
	require.Error(t, err)
	_, err = NewWithPool(context.Background(), nil, "")
	require.Error(t, err)
}

func TestStoreWriteUpserts(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO inspection_cache").
		WithArgs("https://example.com", []byte("payload")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Write(context.Background(), "https://example.com", []byte("payload")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRead(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT value FROM inspection_cache").
		WithArgs("https://example.com").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("payload")))
	mock.ExpectQuery("SELECT value FROM inspection_cache").
		WithArgs("https://missing.example.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT value FROM inspection_cache").
		WithArgs("https://broken.example.com").
		WillReturnError(errors.New("connection refused"))

	ctx := context.Background()
	got, err := store.Read(ctx, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))

	_, err = store.Read(ctx, "https://missing.example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Read(ctx, "https://broken.example.com")
	require.ErrorIs(t, err, inspect.ErrCacheUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteAndList(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM inspection_cache").
		WithArgs("https://example.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("SELECT key FROM inspection_cache").
		WillReturnRows(pgxmock.NewRows([]string{"key"}).
			AddRow("https://a.example.com").
			AddRow("https://b.example.com"))

	ctx := context.Background()
	require.NoError(t, store.Delete(ctx, "https://example.com"))
	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}
