package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
)

// ExecutionStore keeps executions and their logs as JSON files.
type ExecutionStore struct {
	docs *documents[models.WorkflowExecution]
}

func NewExecutionStore(root string) *ExecutionStore {
	return &ExecutionStore{docs: newDocuments[models.WorkflowExecution](root, "executions")}
}

func (s *ExecutionStore) Create(_ context.Context, execution *models.WorkflowExecution) error {
	if execution.Logs == nil {
		execution.Logs = make([]models.ExecutionLog, 0)
	}

	err := s.docs.put(execution.ID, execution)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

func (s *ExecutionStore) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := s.docs.get(id)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, notFound(err, persistence.ErrExecutionNotFound))
	}

	return execution, nil
}

// ListByWorkflow returns the executions of a workflow, most recent first.
func (s *ExecutionStore) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	all, err := s.docs.list()
	if err != nil {
		return nil, persistence.NewExecutionError("ListByWorkflow", "", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, execution := range all {
		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

func (s *ExecutionStore) AppendLog(_ context.Context, id string, entry models.ExecutionLog) error {
	return s.mutate("AppendLog", id, func(execution *models.WorkflowExecution) error {
		execution.Logs = append(execution.Logs, entry)

		return nil
	})
}

func (s *ExecutionStore) SetStatus(_ context.Context, id string, status models.ExecutionStatus) error {
	return s.mutate("SetStatus", id, func(execution *models.WorkflowExecution) error {
		return transition(execution, status)
	})
}

func (s *ExecutionStore) Complete(_ context.Context, id string, result map[string]any) error {
	return s.mutate("Complete", id, func(execution *models.WorkflowExecution) error {
		err := transition(execution, models.ExecutionStatusCompleted)
		if err != nil {
			return err
		}

		execution.Result = result

		return nil
	})
}

func (s *ExecutionStore) Fail(_ context.Context, id string, message string) error {
	return s.mutate("Fail", id, func(execution *models.WorkflowExecution) error {
		err := transition(execution, models.ExecutionStatusFailed)
		if err != nil {
			return err
		}

		execution.ErrorMessage = message

		return nil
	})
}

func transition(execution *models.WorkflowExecution, status models.ExecutionStatus) error {
	if !execution.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", persistence.ErrInvalidStatusTransition, execution.Status, status)
	}

	execution.Status = status

	if status.IsTerminal() {
		now := time.Now().UTC()
		execution.CompletedAt = &now
	}

	return nil
}

func (s *ExecutionStore) mutate(op, id string, fn func(*models.WorkflowExecution) error) error {
	err := s.docs.update(id, fn)
	if err != nil {
		return persistence.NewExecutionError(op, id, notFound(err, persistence.ErrExecutionNotFound))
	}

	return nil
}
