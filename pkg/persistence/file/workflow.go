package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	docs *documents[models.WorkflowDefinition]
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{docs: newDocuments[models.WorkflowDefinition](root, "workflows")}
}

// Save saves a workflow to the file system.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.WorkflowDefinition) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	err := wr.docs.put(workflow.ID, workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	workflow, err := wr.docs.get(id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, notFound(err, persistence.ErrWorkflowNotFound))
	}

	return workflow, nil
}

// List returns the workflows matching opts, newest first.
func (wr *WorkflowRepository) List(_ context.Context, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowDefinition, error) {
	all, err := wr.docs.list()
	if err != nil {
		return nil, persistence.NewWorkflowError("List", "", err)
	}

	filtered := make([]*models.WorkflowDefinition, 0, len(all))

	for _, workflow := range all {
		if opts.ProjectID != "" && workflow.ProjectID != opts.ProjectID {
			continue
		}

		if opts.Status != nil && workflow.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, workflow)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return filtered, nil
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	err := wr.docs.delete(id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, notFound(err, persistence.ErrWorkflowNotFound))
	}

	return nil
}
