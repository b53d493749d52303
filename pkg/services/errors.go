// Package services holds the workflow definition and trigger management use cases.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flowgraph/pkg/graph"
	"github.com/dukex/flowgraph/pkg/registry"
	"github.com/go-playground/validator/v10"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidStatus        = errors.New("invalid workflow status")
	ErrInvalidTriggerType   = errors.New("invalid trigger type")
	ErrInvalidTriggerConfig = errors.New("invalid trigger configuration")
	ErrInvalidCron          = errors.New("invalid cron expression")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
)

// Business conflicts (409 Conflict).
var (
	ErrDuplicateTriggerName    = errors.New("trigger name already exists in project")
	ErrWorkflowArchived        = errors.New("cannot modify archived workflow")
	ErrVersionAlreadyPublished = errors.New("current version is already published")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether err should surface as HTTP 400.
func IsValidationError(err error) bool {
	var fieldErrors validator.ValidationErrors

	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidTriggerType) ||
		errors.Is(err, ErrInvalidTriggerConfig) ||
		errors.Is(err, ErrInvalidCron) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, registry.ErrSchemaViolation) ||
		errors.As(err, &fieldErrors) ||
		graph.IsValidationError(err)
}

// IsConflictError reports whether err should surface as HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateTriggerName) ||
		errors.Is(err, ErrWorkflowArchived) ||
		errors.Is(err, ErrVersionAlreadyPublished)
}

func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewConflictError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
