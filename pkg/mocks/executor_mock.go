package mocks

import (
	"context"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/workflow"
	"github.com/stretchr/testify/mock"
)

// MockExecutor is a mock implementation of triggers.Executor interface.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, req workflow.ExecuteRequest) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, req)

	execution, _ := args.Get(0).(*models.WorkflowExecution)

	return execution, args.Error(1)
}
