package models

import (
	"time"
)

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "PENDING"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusPending: {
		ExecutionStatusRunning,
		ExecutionStatusFailed,
		ExecutionStatusCancelled,
	},
	ExecutionStatusRunning: {
		ExecutionStatusCompleted,
		ExecutionStatusFailed,
		ExecutionStatusCancelled,
	},
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	for _, allowed := range executionTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted ||
		s == ExecutionStatusFailed ||
		s == ExecutionStatusCancelled
}

// LogLevel is the severity of an execution log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// ExecutionLog is a single append-only entry in an execution's log.
type ExecutionLog struct {
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id,omitempty"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// WorkflowExecution records one run of a workflow version.
type WorkflowExecution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	Version      int             `json:"version"`
	Status       ExecutionStatus `json:"status"`
	TriggeredBy  string          `json:"triggered_by"`
	TriggerID    string          `json:"trigger_id,omitempty"`
	Parameters   map[string]any  `json:"parameters,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Logs         []ExecutionLog  `json:"logs"`
	Result       map[string]any  `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}
