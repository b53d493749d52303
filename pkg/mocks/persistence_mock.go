package mocks

import (
	"context"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, id)

	workflow, _ := args.Get(0).(*models.WorkflowDefinition)

	return workflow, args.Error(1)
}

func (m *MockWorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowDefinition, error) {
	args := m.Called(ctx, opts)

	workflows, _ := args.Get(0).([]*models.WorkflowDefinition)

	return workflows, args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockTriggerRepository is a mock implementation of persistence.TriggerRepository interface.
type MockTriggerRepository struct {
	mock.Mock
}

func (m *MockTriggerRepository) Save(ctx context.Context, trigger *models.WorkflowTrigger) error {
	args := m.Called(ctx, trigger)

	return args.Error(0)
}

func (m *MockTriggerRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTrigger, error) {
	args := m.Called(ctx, id)

	trigger, _ := args.Get(0).(*models.WorkflowTrigger)

	return trigger, args.Error(1)
}

func (m *MockTriggerRepository) GetByProjectAndName(ctx context.Context, projectID, name string) (*models.WorkflowTrigger, error) {
	args := m.Called(ctx, projectID, name)

	trigger, _ := args.Get(0).(*models.WorkflowTrigger)

	return trigger, args.Error(1)
}

func (m *MockTriggerRepository) ListByProject(ctx context.Context, projectID string) ([]*models.WorkflowTrigger, error) {
	return m.list(m.Called(ctx, projectID))
}

func (m *MockTriggerRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowTrigger, error) {
	return m.list(m.Called(ctx, workflowID))
}

func (m *MockTriggerRepository) ListByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error) {
	return m.list(m.Called(ctx, triggerType))
}

func (m *MockTriggerRepository) ListEnabled(ctx context.Context) ([]*models.WorkflowTrigger, error) {
	return m.list(m.Called(ctx))
}

func (m *MockTriggerRepository) ListEnabledByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error) {
	return m.list(m.Called(ctx, triggerType))
}

func (m *MockTriggerRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockTriggerRepository) list(args mock.Arguments) ([]*models.WorkflowTrigger, error) {
	triggers, _ := args.Get(0).([]*models.WorkflowTrigger)

	return triggers, args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
// Its repositories are mocks too; the execution store is left to the caller.
type MockPersistence struct {
	mock.Mock

	workflowRepo *MockWorkflowRepository
	triggerRepo  *MockTriggerRepository
	executions   persistence.ExecutionStore
}

func NewMockPersistence(executions persistence.ExecutionStore) *MockPersistence {
	return &MockPersistence{
		workflowRepo: &MockWorkflowRepository{},
		triggerRepo:  &MockTriggerRepository{},
		executions:   executions,
	}
}

func (m *MockPersistence) GetMockWorkflowRepository() *MockWorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) GetMockTriggerRepository() *MockTriggerRepository {
	return m.triggerRepo
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) TriggerRepository() persistence.TriggerRepository {
	return m.triggerRepo
}

func (m *MockPersistence) ExecutionStore() persistence.ExecutionStore {
	return m.executions
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
