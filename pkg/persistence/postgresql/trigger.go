package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
)

// TriggerRepository handles trigger-related database operations.
type TriggerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTriggerRepository creates a new trigger repository.
func NewTriggerRepository(db *sql.DB, logger *slog.Logger) *TriggerRepository {
	return &TriggerRepository{db: db, logger: logger}
}

const selectTrigger = `
	SELECT
		id
	  , name
	  , description
	  , workflow_id
	  , project_id
	  , trigger_type
	  , config
	  , default_inputs
	  , enabled
	  , created_by
	  , created_at
	  , updated_at
	  , execution_count
	  , last_execution_at
	  , last_execution_status
	  , last_execution_id
	FROM workflow_triggers
`

// Save inserts or replaces a trigger.
func (r *TriggerRepository) Save(ctx context.Context, trigger *models.WorkflowTrigger) error {
	now := time.Now().UTC()
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	config, err := json.Marshal(trigger.Config)
	if err != nil {
		return persistence.NewTriggerError("Save", trigger.ID, fmt.Errorf("failed to marshal config: %w", err))
	}

	defaultInputs, err := json.Marshal(nonNilMap(trigger.DefaultInputs))
	if err != nil {
		return persistence.NewTriggerError("Save", trigger.ID, fmt.Errorf("failed to marshal default inputs: %w", err))
	}

	query := `
		INSERT INTO workflow_triggers (
			id, name, description, workflow_id, project_id, trigger_type, config, default_inputs, enabled,
			created_by, created_at, updated_at, execution_count, last_execution_at, last_execution_status, last_execution_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			workflow_id = EXCLUDED.workflow_id,
			project_id = EXCLUDED.project_id,
			trigger_type = EXCLUDED.trigger_type,
			config = EXCLUDED.config,
			default_inputs = EXCLUDED.default_inputs,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at,
			execution_count = EXCLUDED.execution_count,
			last_execution_at = EXCLUDED.last_execution_at,
			last_execution_status = EXCLUDED.last_execution_status,
			last_execution_id = EXCLUDED.last_execution_id
	`

	_, err = r.db.ExecContext(ctx, query,
		trigger.ID, trigger.Name, trigger.Description, trigger.WorkflowID, trigger.ProjectID,
		string(trigger.Type), config, defaultInputs, trigger.Enabled,
		trigger.CreatedBy, trigger.CreatedAt, trigger.UpdatedAt, trigger.ExecutionCount,
		trigger.LastExecutionAt, trigger.LastExecutionStatus, trigger.LastExecutionID,
	)
	if err != nil {
		return persistence.NewTriggerError("Save", trigger.ID, err)
	}

	return nil
}

func (r *TriggerRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTrigger, error) {
	return r.getOne(ctx, "GetByID", id, selectTrigger+" WHERE id = $1", id)
}

func (r *TriggerRepository) GetByProjectAndName(ctx context.Context, projectID, name string) (*models.WorkflowTrigger, error) {
	return r.getOne(ctx, "GetByProjectAndName", name, selectTrigger+" WHERE project_id = $1 AND name = $2", projectID, name)
}

func (r *TriggerRepository) ListByProject(ctx context.Context, projectID string) ([]*models.WorkflowTrigger, error) {
	return r.list(ctx, "ListByProject", " WHERE project_id = $1", projectID)
}

func (r *TriggerRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowTrigger, error) {
	return r.list(ctx, "ListByWorkflow", " WHERE workflow_id = $1", workflowID)
}

func (r *TriggerRepository) ListByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error) {
	return r.list(ctx, "ListByType", " WHERE trigger_type = $1", string(triggerType))
}

func (r *TriggerRepository) ListEnabled(ctx context.Context) ([]*models.WorkflowTrigger, error) {
	return r.list(ctx, "ListEnabled", " WHERE enabled = true")
}

func (r *TriggerRepository) ListEnabledByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error) {
	return r.list(ctx, "ListEnabledByType", " WHERE enabled = true AND trigger_type = $1", string(triggerType))
}

// Delete hard-deletes a trigger.
func (r *TriggerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_triggers WHERE id = $1", id)
	if err != nil {
		return persistence.NewTriggerError("Delete", id, err)
	}

	return requireAffected(result, persistence.NewTriggerError("Delete", id, persistence.ErrTriggerNotFound))
}

func (r *TriggerRepository) getOne(ctx context.Context, op, key, query string, args ...any) (*models.WorkflowTrigger, error) {
	trigger, err := scanTrigger(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewTriggerError(op, key, persistence.ErrTriggerNotFound)
	}

	if err != nil {
		return nil, persistence.NewTriggerError(op, key, err)
	}

	return trigger, nil
}

func (r *TriggerRepository) list(ctx context.Context, op, where string, args ...any) ([]*models.WorkflowTrigger, error) {
	rows, err := r.db.QueryContext(ctx, selectTrigger+where+" ORDER BY created_at ASC", args...)
	if err != nil {
		return nil, persistence.NewTriggerError(op, "", fmt.Errorf("failed to query triggers: %w", err))
	}

	defer closeRows(ctx, r.logger, rows)

	triggers := make([]*models.WorkflowTrigger, 0)

	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, persistence.NewTriggerError(op, "", fmt.Errorf("failed to scan trigger: %w", err))
		}

		triggers = append(triggers, trigger)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewTriggerError(op, "", fmt.Errorf("error iterating triggers: %w", err))
	}

	return triggers, nil
}

func scanTrigger(row scanner) (*models.WorkflowTrigger, error) {
	var (
		trigger         models.WorkflowTrigger
		triggerType     string
		config          []byte
		defaultInputs   []byte
		lastExecutionAt sql.NullTime
	)

	err := row.Scan(
		&trigger.ID, &trigger.Name, &trigger.Description, &trigger.WorkflowID, &trigger.ProjectID,
		&triggerType, &config, &defaultInputs, &trigger.Enabled,
		&trigger.CreatedBy, &trigger.CreatedAt, &trigger.UpdatedAt, &trigger.ExecutionCount,
		&lastExecutionAt, &trigger.LastExecutionStatus, &trigger.LastExecutionID,
	)
	if err != nil {
		return nil, err
	}

	trigger.Type = models.TriggerType(triggerType)

	if lastExecutionAt.Valid {
		trigger.LastExecutionAt = &lastExecutionAt.Time
	}

	err = json.Unmarshal(config, &trigger.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	err = json.Unmarshal(defaultInputs, &trigger.DefaultInputs)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal default inputs: %w", err)
	}

	return &trigger, nil
}
