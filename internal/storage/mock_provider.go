package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of inspect.KVStore.
type MockStore struct {
	mock.Mock
}

// Read is the mock implementation of Read.
func (m *MockStore) Read(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1) //nolint:wrapcheck
}

// Write is the mock implementation of Write.
func (m *MockStore) Write(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0) //nolint:wrapcheck
}

// Delete is the mock implementation of Delete.
func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0) //nolint:wrapcheck
}

// ListKeys is the mock implementation of ListKeys.
func (m *MockStore) ListKeys(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1) //nolint:wrapcheck
}

// Close is the mock implementation of Close.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}
