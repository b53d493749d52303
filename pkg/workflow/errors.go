package workflow

import "errors"

var (
	ErrNoCurrentVersion     = errors.New("workflow has no current version")
	ErrWorkflowArchived     = errors.New("workflow is archived")
	ErrExecutionFinished    = errors.New("execution already finished")
	ErrExecutionNotFinished = errors.New("execution has not finished")
	ErrNotRestartable       = errors.New("workflow is not restartable")

	ErrExecutionCancelled = errors.New("execution cancelled")
	ErrExecutionTimeout   = errors.New("execution timed out")
	ErrNodeTimeout        = errors.New("node timed out")
)
