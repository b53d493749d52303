package web

import "github.com/dukex/flowgraph/pkg/models"

// ExecuteWorkflowRequest is the body of POST /workflows/:id/execute.
type ExecuteWorkflowRequest struct {
	UserID     string         `json:"user_id"`
	Parameters map[string]any `json:"parameters"`
}

// ExecutionAccepted is returned when an execution has been started.
type ExecutionAccepted struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Version     int                    `json:"version"`
	Status      models.ExecutionStatus `json:"status"`
}

// UserRequest carries the acting user for publish, restart and manual fire.
type UserRequest struct {
	UserID string `json:"user_id"`
}

// FireTriggerRequest is the body of POST /triggers/:id/fire.
type FireTriggerRequest struct {
	UserID     string         `json:"user_id"`
	Parameters map[string]any `json:"parameters"`
}

// PublishEventRequest is the body of POST /events.
type PublishEventRequest struct {
	Name      string         `json:"name"       validate:"required"`
	Source    string         `json:"source"`
	ProjectID string         `json:"project_id"`
	Data      map[string]any `json:"data"`
}

func accepted(execution *models.WorkflowExecution) ExecutionAccepted {
	return ExecutionAccepted{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Version:     execution.Version,
		Status:      execution.Status,
	}
}
