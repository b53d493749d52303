// Package persistence provides the storage abstraction for workflows, executions and triggers.
package persistence

import (
	"context"

	"github.com/dukex/flowgraph/pkg/models"
)

// Persistence groups the repositories backed by one storage provider.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionStore() ExecutionStore
	TriggerRepository() TriggerRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters workflow listings. Empty fields match everything.
type ListWorkflowsOptions struct {
	ProjectID string
	Status    *models.WorkflowStatus
}

// WorkflowRepository stores workflow definitions with their versions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	List(ctx context.Context, opts ListWorkflowsOptions) ([]*models.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionStore is the append-only log and status record of executions.
// SetStatus, Complete and Fail enforce monotonic transitions and stamp
// completed_at on terminal states. Complete and Fail write the result or the
// error message in the same step as the status, so a record that already
// reached another terminal state is left untouched.
type ExecutionStore interface {
	Create(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
	AppendLog(ctx context.Context, id string, entry models.ExecutionLog) error
	SetStatus(ctx context.Context, id string, status models.ExecutionStatus) error
	Complete(ctx context.Context, id string, result map[string]any) error
	Fail(ctx context.Context, id string, message string) error
}

// TriggerRepository stores trigger definitions.
type TriggerRepository interface {
	Save(ctx context.Context, trigger *models.WorkflowTrigger) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTrigger, error)
	GetByProjectAndName(ctx context.Context, projectID, name string) (*models.WorkflowTrigger, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.WorkflowTrigger, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowTrigger, error)
	ListByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error)
	ListEnabled(ctx context.Context) ([]*models.WorkflowTrigger, error)
	ListEnabledByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error)
	Delete(ctx context.Context, id string) error
}
