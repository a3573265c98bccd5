package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stmtrules/internal/domain"
)

// MockProfileBackupStore is a mock implementation of port.ProfileBackupStore.
type MockProfileBackupStore struct {
	mock.Mock
}

func (m *MockProfileBackupStore) Store(ctx context.Context, snap *domain.ConfigSnapshot) (string, error) {
	args := m.Called(ctx, snap)
	return args.String(0), args.Error(1)
}

func (m *MockProfileBackupStore) Prune(ctx context.Context, keep int) (int, error) {
	args := m.Called(ctx, keep)
	return args.Int(0), args.Error(1)
}
