package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stmtrules/internal/parser"
	"stmtrules/internal/service"
)

// MockPlanService is a mock implementation of service.PlanService.
type MockPlanService struct {
	mock.Mock
}

func (m *MockPlanService) Plan(dc service.DocumentContext) *service.Plan {
	args := m.Called(dc)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*service.Plan)
}

func (m *MockPlanService) Escalate(plan *service.Plan, current string, quality float64, attempt int) service.Escalation {
	args := m.Called(plan, current, quality, attempt)
	return args.Get(0).(service.Escalation)
}

// MockStatementRunner is a mock implementation of handler.StatementRunner.
type MockStatementRunner struct {
	mock.Mock
}

func (m *MockStatementRunner) Run(ctx context.Context, dc service.DocumentContext, file []byte, contentType string) (*parser.RunResult, error) {
	args := m.Called(ctx, dc, file, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*parser.RunResult), args.Error(1)
}
