package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stmtrules/internal/domain"
	"stmtrules/internal/profile"
	"stmtrules/internal/service"
)

// MockProfileService is a mock implementation of service.ProfileService.
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) List() []*domain.BankProfile {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*domain.BankProfile)
}

func (m *MockProfileService) Get(id string) (*domain.BankProfile, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BankProfile), args.Error(1)
}

func (m *MockProfileService) Create(p *domain.BankProfile) (*domain.BankProfile, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BankProfile), args.Error(1)
}

func (m *MockProfileService) Update(id string, u domain.ProfileUpdate) (*domain.BankProfile, error) {
	args := m.Called(id, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BankProfile), args.Error(1)
}

func (m *MockProfileService) Delete(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockProfileService) Validate(p *domain.BankProfile) domain.ValidationResult {
	args := m.Called(p)
	return args.Get(0).(domain.ValidationResult)
}

func (m *MockProfileService) Identify(filename, text string) (*service.IdentifyResult, error) {
	args := m.Called(filename, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IdentifyResult), args.Error(1)
}

func (m *MockProfileService) Export(id string, format profile.Format) ([]byte, error) {
	args := m.Called(id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockProfileService) Import(data []byte, format profile.Format) (*domain.BankProfile, error) {
	args := m.Called(data, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BankProfile), args.Error(1)
}

func (m *MockProfileService) Backup(ctx context.Context, profileID string) (*domain.BackupInfo, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BackupInfo), args.Error(1)
}

func (m *MockProfileService) Reload() int {
	args := m.Called()
	return args.Int(0)
}
