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

// ExecutionStore handles execution records and their append-only logs.
type ExecutionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionStore creates a new execution store.
func NewExecutionStore(db *sql.DB, logger *slog.Logger) *ExecutionStore {
	return &ExecutionStore{db: db, logger: logger}
}

const selectExecution = `
	SELECT
		id
	  , workflow_id
	  , version
	  , status
	  , triggered_by
	  , trigger_id
	  , parameters
	  , started_at
	  , completed_at
	  , logs
	  , result
	  , error_message
	FROM workflow_executions
`

func (s *ExecutionStore) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	if execution.Logs == nil {
		execution.Logs = make([]models.ExecutionLog, 0)
	}

	parameters, err := json.Marshal(nonNilMap(execution.Parameters))
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("failed to marshal parameters: %w", err))
	}

	logs, err := json.Marshal(execution.Logs)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("failed to marshal logs: %w", err))
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, version, status, triggered_by, trigger_id, parameters, started_at, completed_at, logs, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.Version, string(execution.Status),
		execution.TriggeredBy, execution.TriggerID, parameters, execution.StartedAt,
		execution.CompletedAt, logs, execution.ErrorMessage,
	)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

func (s *ExecutionStore) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := s.db.QueryRowContext(ctx, selectExecution+" WHERE id = $1", id)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// ListByWorkflow returns the executions of a workflow, most recent first.
func (s *ExecutionStore) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	rows, err := s.db.QueryContext(ctx, selectExecution+" WHERE workflow_id = $1 ORDER BY started_at DESC", workflowID)
	if err != nil {
		return nil, persistence.NewExecutionError("ListByWorkflow", "", fmt.Errorf("failed to query executions: %w", err))
	}

	defer closeRows(ctx, s.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewExecutionError("ListByWorkflow", "", fmt.Errorf("failed to scan execution: %w", err))
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewExecutionError("ListByWorkflow", "", fmt.Errorf("error iterating executions: %w", err))
	}

	return executions, nil
}

// AppendLog appends one entry atomically using JSONB concatenation.
func (s *ExecutionStore) AppendLog(ctx context.Context, id string, entry models.ExecutionLog) error {
	payload, err := json.Marshal([]models.ExecutionLog{entry})
	if err != nil {
		return persistence.NewExecutionError("AppendLog", id, fmt.Errorf("failed to marshal log entry: %w", err))
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE workflow_executions SET logs = logs || $2::jsonb WHERE id = $1", id, payload)
	if err != nil {
		return persistence.NewExecutionError("AppendLog", id, err)
	}

	return requireAffected(result, persistence.NewExecutionError("AppendLog", id, persistence.ErrExecutionNotFound))
}

func (s *ExecutionStore) SetStatus(ctx context.Context, id string, status models.ExecutionStatus) error {
	return s.transition(ctx, "SetStatus", id, status, "", nil)
}

func (s *ExecutionStore) Complete(ctx context.Context, id string, result map[string]any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return persistence.NewExecutionError("Complete", id, fmt.Errorf("failed to marshal result: %w", err))
	}

	return s.transition(ctx, "Complete", id, models.ExecutionStatusCompleted, "result", payload)
}

func (s *ExecutionStore) Fail(ctx context.Context, id string, message string) error {
	return s.transition(ctx, "Fail", id, models.ExecutionStatusFailed, "error_message", message)
}

// transition locks the row, checks the status change and applies it together
// with the optional column update. completed_at is stamped on terminal states.
func (s *ExecutionStore) transition(
	ctx context.Context,
	op, id string,
	status models.ExecutionStatus,
	column string,
	value any,
) error {
	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewExecutionError(op, id, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	var current string

	err = transaction.QueryRowContext(ctx,
		"SELECT status FROM workflow_executions WHERE id = $1 FOR UPDATE", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewExecutionError(op, id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return persistence.NewExecutionError(op, id, err)
	}

	from := models.ExecutionStatus(current)
	if !from.CanTransitionTo(status) {
		return persistence.NewExecutionError(op, id,
			fmt.Errorf("%w: %s -> %s", persistence.ErrInvalidStatusTransition, from, status))
	}

	var completedAt *time.Time

	if status.IsTerminal() {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := "UPDATE workflow_executions SET status = $2, completed_at = COALESCE($3, completed_at)"
	args := []any{id, string(status), completedAt}

	if column != "" {
		query += ", " + column + " = $4"
		args = append(args, value)
	}

	_, err = transaction.ExecContext(ctx, query+" WHERE id = $1", args...)
	if err != nil {
		return persistence.NewExecutionError(op, id, err)
	}

	err = transaction.Commit()
	if err != nil {
		return persistence.NewExecutionError(op, id, fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

func scanExecution(row scanner) (*models.WorkflowExecution, error) {
	var (
		execution   models.WorkflowExecution
		status      string
		parameters  []byte
		completedAt sql.NullTime
		logs        []byte
		result      []byte
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.Version, &status,
		&execution.TriggeredBy, &execution.TriggerID, &parameters, &execution.StartedAt,
		&completedAt, &logs, &result, &execution.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	err = json.Unmarshal(parameters, &execution.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	err = json.Unmarshal(logs, &execution.Logs)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal logs: %w", err)
	}

	if len(result) > 0 {
		err = json.Unmarshal(result, &execution.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return &execution, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
