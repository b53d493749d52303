// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrTriggerNotFound indicates a trigger was not found by the given identifier.
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrInvalidStatusTransition indicates a status change that would move an execution backwards.
	ErrInvalidStatusTransition = errors.New("invalid execution status transition")

	// ErrInvalidID indicates an identifier that cannot be stored safely.
	ErrInvalidID = errors.New("invalid identifier")
)

// EntityError wraps persistence errors with the operation and entity involved.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "SetStatus")
	Entity string // "workflow", "execution" or "trigger"
	ID     string
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "workflow", ID: workflowID, Err: err}
}

// NewExecutionError creates an execution error with context.
func NewExecutionError(op, executionID string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "execution", ID: executionID, Err: err}
}

// NewTriggerError creates a trigger error with context.
func NewTriggerError(op, triggerID string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "trigger", ID: triggerID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsTriggerNotFound checks if an error indicates a trigger was not found.
func IsTriggerNotFound(err error) bool {
	return errors.Is(err, ErrTriggerNotFound)
}

// IsNotFound checks for any not-found error.
func IsNotFound(err error) bool {
	return IsWorkflowNotFound(err) || IsExecutionNotFound(err) || IsTriggerNotFound(err)
}

// IsInvalidStatusTransition checks if an error indicates a rejected status change.
func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}
