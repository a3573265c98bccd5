package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stmtrules/internal/domain"
)

// MockConfigSnapshotRepo is a mock implementation of port.ConfigSnapshotRepository.
type MockConfigSnapshotRepo struct {
	mock.Mock
}

func (m *MockConfigSnapshotRepo) Create(ctx context.Context, snap *domain.ConfigSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockConfigSnapshotRepo) Latest(ctx context.Context, kind domain.SnapshotKind) (*domain.ConfigSnapshot, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConfigSnapshot), args.Error(1)
}

func (m *MockConfigSnapshotRepo) List(ctx context.Context, kind domain.SnapshotKind, limit int) ([]domain.ConfigSnapshot, error) {
	args := m.Called(ctx, kind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConfigSnapshot), args.Error(1)
}

func (m *MockConfigSnapshotRepo) DeleteAllButNewest(ctx context.Context, kind domain.SnapshotKind, keep int) (int, error) {
	args := m.Called(ctx, kind, keep)
	return args.Int(0), args.Error(1)
}
