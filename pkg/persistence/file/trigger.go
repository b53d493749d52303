package file

import (
	"context"
	"sort"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
)

// TriggerRepository handles trigger-related file operations.
type TriggerRepository struct {
	docs *documents[models.WorkflowTrigger]
}

func NewTriggerRepository(root string) *TriggerRepository {
	return &TriggerRepository{docs: newDocuments[models.WorkflowTrigger](root, "triggers")}
}

func (r *TriggerRepository) Save(_ context.Context, trigger *models.WorkflowTrigger) error {
	err := r.docs.put(trigger.ID, trigger)
	if err != nil {
		return persistence.NewTriggerError("Save", trigger.ID, err)
	}

	return nil
}

func (r *TriggerRepository) GetByID(_ context.Context, id string) (*models.WorkflowTrigger, error) {
	trigger, err := r.docs.get(id)
	if err != nil {
		return nil, persistence.NewTriggerError("GetByID", id, notFound(err, persistence.ErrTriggerNotFound))
	}

	return trigger, nil
}

func (r *TriggerRepository) GetByProjectAndName(_ context.Context, projectID, name string) (*models.WorkflowTrigger, error) {
	triggers, err := r.filter("GetByProjectAndName", func(t *models.WorkflowTrigger) bool {
		return t.ProjectID == projectID && t.Name == name
	})
	if err != nil {
		return nil, err
	}

	if len(triggers) == 0 {
		return nil, persistence.NewTriggerError("GetByProjectAndName", name, persistence.ErrTriggerNotFound)
	}

	return triggers[0], nil
}

func (r *TriggerRepository) ListByProject(_ context.Context, projectID string) ([]*models.WorkflowTrigger, error) {
	return r.filter("ListByProject", func(t *models.WorkflowTrigger) bool {
		return t.ProjectID == projectID
	})
}

func (r *TriggerRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowTrigger, error) {
	return r.filter("ListByWorkflow", func(t *models.WorkflowTrigger) bool {
		return t.WorkflowID == workflowID
	})
}

func (r *TriggerRepository) ListByType(_ context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error) {
	return r.filter("ListByType", func(t *models.WorkflowTrigger) bool {
		return t.Type == triggerType
	})
}

func (r *TriggerRepository) ListEnabled(_ context.Context) ([]*models.WorkflowTrigger, error) {
	return r.filter("ListEnabled", func(t *models.WorkflowTrigger) bool {
		return t.Enabled
	})
}

func (r *TriggerRepository) ListEnabledByType(_ context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error) {
	return r.filter("ListEnabledByType", func(t *models.WorkflowTrigger) bool {
		return t.Enabled && t.Type == triggerType
	})
}

func (r *TriggerRepository) Delete(_ context.Context, id string) error {
	err := r.docs.delete(id)
	if err != nil {
		return persistence.NewTriggerError("Delete", id, notFound(err, persistence.ErrTriggerNotFound))
	}

	return nil
}

func (r *TriggerRepository) filter(op string, match func(*models.WorkflowTrigger) bool) ([]*models.WorkflowTrigger, error) {
	all, err := r.docs.list()
	if err != nil {
		return nil, persistence.NewTriggerError(op, "", err)
	}

	triggers := make([]*models.WorkflowTrigger, 0)

	for _, trigger := range all {
		if match(trigger) {
			triggers = append(triggers, trigger)
		}
	}

	sort.Slice(triggers, func(i, j int) bool {
		return triggers[i].CreatedAt.Before(triggers[j].CreatedAt)
	})

	return triggers, nil
}
