package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowgraph/pkg/eventbus"
	"github.com/dukex/flowgraph/pkg/events"
	"github.com/dukex/flowgraph/pkg/graph"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

type Workflow struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	graph       *graph.Validator
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
}

// NewWorkflow creates the definition service. publisher may be nil.
func NewWorkflow(
	logger *slog.Logger,
	persistence persistence.Persistence,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
) *Workflow {
	return &Workflow{
		logger:      logger.With("module", "workflow_service"),
		persistence: persistence,
		registry:    reg,
		graph:       graph.NewValidator(logger),
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

type CreateWorkflowRequest struct {
	Name        string                  `json:"name"        validate:"required,min=3"`
	Description string                  `json:"description"`
	ProjectID   string                  `json:"project_id"  validate:"required"`
	OwnerID     string                  `json:"owner_id"`
	Nodes       []*models.WorkflowNode  `json:"nodes"       validate:"dive"`
	Edges       []*models.WorkflowEdge  `json:"edges"       validate:"dive"`
	Metadata    models.WorkflowMetadata `json:"metadata"`
}

// UpdateWorkflowRequest changes only the fields that are set. Nodes and Edges
// are replaced together.
type UpdateWorkflowRequest struct {
	Name        *string                  `json:"name"        validate:"omitempty,min=3"`
	Description *string                  `json:"description"`
	Nodes       []*models.WorkflowNode   `json:"nodes"       validate:"omitempty,dive"`
	Edges       []*models.WorkflowEdge   `json:"edges"       validate:"omitempty,dive"`
	Metadata    *models.WorkflowMetadata `json:"metadata"`
}

type ListWorkflowsRequest struct {
	ProjectID string
	Status    string `validate:"omitempty,oneof=draft published archived"`
}

// Create stores a draft definition with an unpublished first version.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*models.WorkflowDefinition, error) {
	err := w.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("Create", "INVALID_WORKFLOW", err.Error(), err)
	}

	now := time.Now().UTC()

	definition := &models.WorkflowDefinition{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		OwnerID:     req.OwnerID,
		Status:      models.WorkflowStatusDraft,
		Versions: []*models.WorkflowVersion{{
			Version:   1,
			Nodes:     nonNilNodes(req.Nodes),
			Edges:     nonNilEdges(req.Edges),
			CreatedAt: now,
		}},
		CurrentVersion: 1,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = w.persistence.WorkflowRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow created", "workflow_id", definition.ID, "project_id", definition.ProjectID)

	return definition, nil
}

func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

func (w *Workflow) List(ctx context.Context, req ListWorkflowsRequest) ([]*models.WorkflowDefinition, error) {
	err := w.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("List", "INVALID_STATUS", "status must be draft, published or archived", ErrInvalidStatus)
	}

	opts := persistence.ListWorkflowsOptions{ProjectID: req.ProjectID}

	if req.Status != "" {
		status := models.WorkflowStatus(req.Status)
		opts.Status = &status
	}

	workflows, err := w.persistence.WorkflowRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// Update edits a definition. A graph change on a published current version
// opens a new unpublished version; an unpublished one is edited in place.
func (w *Workflow) Update(ctx context.Context, id string, req UpdateWorkflowRequest) (*models.WorkflowDefinition, error) {
	err := w.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("Update", "INVALID_WORKFLOW", err.Error(), err)
	}

	definition, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if definition.Status == models.WorkflowStatusArchived {
		return nil, NewConflictError("Update", "WORKFLOW_ARCHIVED", "archived workflows are read-only", ErrWorkflowArchived)
	}

	if req.Name != nil {
		definition.Name = *req.Name
	}

	if req.Description != nil {
		definition.Description = *req.Description
	}

	if req.Metadata != nil {
		definition.Metadata = *req.Metadata
	}

	if req.Nodes != nil || req.Edges != nil {
		w.replaceGraph(definition, nonNilNodes(req.Nodes), nonNilEdges(req.Edges))
	}

	err = w.persistence.WorkflowRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return definition, nil
}

func (w *Workflow) replaceGraph(definition *models.WorkflowDefinition, nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) {
	current := definition.Current()
	if current != nil && !current.Published {
		current.Nodes = nodes
		current.Edges = edges

		return
	}

	next := &models.WorkflowVersion{
		Version:   definition.LatestVersion() + 1,
		Nodes:     nodes,
		Edges:     edges,
		CreatedAt: time.Now().UTC(),
	}

	definition.Versions = append(definition.Versions, next)
	definition.CurrentVersion = next.Version
	definition.Status = models.WorkflowStatusDraft
}

// ValidateGraph runs the graph rules and then checks every node against its
// executor.
func (w *Workflow) ValidateGraph(ctx context.Context, nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) error {
	err := w.graph.Validate(ctx, nodes, edges)
	if err != nil {
		return err
	}

	for _, node := range nodes {
		_, err = w.registry.ValidateNode(node)
		if err != nil {
			return NewValidationError("ValidateGraph", "INVALID_NODE", err.Error(), err)
		}
	}

	return nil
}

// Publish validates the current version and freezes it.
func (w *Workflow) Publish(ctx context.Context, id, userID string) (*models.WorkflowDefinition, error) {
	definition, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if definition.Status == models.WorkflowStatusArchived {
		return nil, NewConflictError("Publish", "WORKFLOW_ARCHIVED", "archived workflows cannot be published", ErrWorkflowArchived)
	}

	current := definition.Current()
	if current == nil {
		return nil, NewValidationError("Publish", "NO_VERSION", "workflow has no current version", ErrInvalidRequest)
	}

	if current.Published {
		return nil, NewConflictError("Publish", "ALREADY_PUBLISHED",
			fmt.Sprintf("version %d is already published", current.Version), ErrVersionAlreadyPublished)
	}

	err = w.ValidateGraph(ctx, current.Nodes, current.Edges)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	current.Published = true
	current.PublishedAt = &now
	definition.Status = models.WorkflowStatusPublished

	err = w.persistence.WorkflowRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to publish workflow: %w", err)
	}

	w.publish(ctx, definition.ID, events.WorkflowPublished{
		BaseEvent:   events.NewBaseEvent(events.WorkflowPublishedEvent, definition.ID),
		Version:     current.Version,
		PublishedBy: userID,
	})

	w.logger.InfoContext(ctx, "workflow published", "workflow_id", definition.ID, "version", current.Version)

	return definition, nil
}

// Archive makes a definition read-only and stops it from being executed.
func (w *Workflow) Archive(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	definition, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	definition.Status = models.WorkflowStatusArchived

	err = w.persistence.WorkflowRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to archive workflow: %w", err)
	}

	return definition, nil
}

// Delete removes a definition together with its triggers.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	_, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	triggers, err := w.persistence.TriggerRepository().ListByWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list workflow triggers: %w", err)
	}

	for _, trigger := range triggers {
		err = w.persistence.TriggerRepository().Delete(ctx, trigger.ID)
		if err != nil && !persistence.IsTriggerNotFound(err) {
			return fmt.Errorf("failed to delete trigger %s: %w", trigger.ID, err)
		}
	}

	return w.persistence.WorkflowRepository().Delete(ctx, id)
}

func (w *Workflow) publish(ctx context.Context, key string, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	err := w.publisher.Publish(ctx, key, event)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func nonNilNodes(nodes []*models.WorkflowNode) []*models.WorkflowNode {
	if nodes == nil {
		return make([]*models.WorkflowNode, 0)
	}

	return nodes
}

func nonNilEdges(edges []*models.WorkflowEdge) []*models.WorkflowEdge {
	if edges == nil {
		return make([]*models.WorkflowEdge, 0)
	}

	return edges
}
