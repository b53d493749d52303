package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const selectWorkflow = `
	SELECT
		id
	  , name
	  , description
	  , project_id
	  , owner_id
	  , status
	  , versions
	  , current_version
	  , metadata
	  , created_at
	  , updated_at
	FROM workflows
`

// Save inserts or replaces a workflow.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	versions, err := json.Marshal(workflow.Versions)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal versions: %w", err))
	}

	metadata, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal metadata: %w", err))
	}

	query := `
		INSERT INTO workflows (id, name, description, project_id, owner_id, status, versions, current_version, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			project_id = EXCLUDED.project_id,
			owner_id = EXCLUDED.owner_id,
			status = EXCLUDED.status,
			versions = EXCLUDED.versions,
			current_version = EXCLUDED.current_version,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Description, workflow.ProjectID, workflow.OwnerID,
		string(workflow.Status), versions, workflow.CurrentVersion, metadata,
		workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	row := r.db.QueryRowContext(ctx, selectWorkflow+" WHERE id = $1", id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// List returns the workflows matching opts, newest first.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowDefinition, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if opts.ProjectID != "" {
		args = append(args, opts.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := selectWorkflow
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewWorkflowError("List", "", fmt.Errorf("failed to query workflows: %w", err))
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewWorkflowError("List", "", fmt.Errorf("failed to scan workflow: %w", err))
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewWorkflowError("List", "", fmt.Errorf("error iterating workflows: %w", err))
	}

	return workflows, nil
}

// Delete removes a workflow.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return requireAffected(result, persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*models.WorkflowDefinition, error) {
	var (
		workflow models.WorkflowDefinition
		status   string
		versions []byte
		metadata []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.Name, &workflow.Description, &workflow.ProjectID, &workflow.OwnerID,
		&status, &versions, &workflow.CurrentVersion, &metadata,
		&workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Status = models.WorkflowStatus(status)

	err = json.Unmarshal(versions, &workflow.Versions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal versions: %w", err)
	}

	err = json.Unmarshal(metadata, &workflow.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &workflow, nil
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return notFound
	}

	return nil
}
