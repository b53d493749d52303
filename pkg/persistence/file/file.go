// Package file provides file-based persistence for workflows, executions and triggers.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/flowgraph/pkg/persistence"
)

// Persistence implements persistence.Persistence with one JSON file per entity.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionStore
	triggerRepo   *TriggerRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionStore(cleanRoot),
		triggerRepo:   NewTriggerRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionStore() persistence.ExecutionStore {
	return fp.executionRepo
}

func (fp *Persistence) TriggerRepository() persistence.TriggerRepository {
	return fp.triggerRepo
}
