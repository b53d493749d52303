//go:build integration

package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/persistence/postgresql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	postgresContainer *postgres.PostgresContainer
	containerMu       sync.Mutex
)

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_triggers", "workflow_executions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	containerMu.Lock()
	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flowgraph_test"),
			postgres.WithUsername("flowgraph"),
			postgres.WithPassword("flowgraph"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			containerMu.Unlock()
			require.NoError(t, err)
		}
	}
	containerMu.Unlock()

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, p.Close(ctx))
		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	for _, table := range []string{"workflows", "workflow_executions", "workflow_triggers"} {
		var exists bool

		err = db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}

func TestWorkflowRepository_Postgres(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := &models.WorkflowDefinition{
		ID:        uuid.New().String(),
		Name:      "orders",
		ProjectID: "p1",
		OwnerID:   "u1",
		Status:    models.WorkflowStatusDraft,
		Versions: []*models.WorkflowVersion{{
			Version: 1,
			Nodes: []*models.WorkflowNode{
				{ID: "t", Type: models.NodeTypeTrigger},
				{ID: "o", Type: models.NodeTypeOutput},
			},
			Edges: []*models.WorkflowEdge{{ID: "e1", Source: "t", Target: "o"}},
		}},
		CurrentVersion: 1,
		Metadata:       models.WorkflowMetadata{TimeoutSeconds: 30, Tags: []string{"a"}},
	}

	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "orders", loaded.Name)
	require.Len(t, loaded.Versions, 1)
	assert.Len(t, loaded.Versions[0].Nodes, 2)
	assert.Equal(t, 30, loaded.Metadata.TimeoutSeconds)

	published := models.WorkflowStatusPublished
	workflow.Status = published
	require.NoError(t, repo.Save(ctx, workflow))

	list, err := repo.List(ctx, persistence.ListWorkflowsOptions{ProjectID: "p1", Status: &published})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = repo.List(ctx, persistence.ListWorkflowsOptions{ProjectID: "other"})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, repo.Delete(ctx, workflow.ID))

	_, err = repo.GetByID(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = repo.Delete(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestExecutionStore_Postgres(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := p.ExecutionStore()

	execution := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		WorkflowID:  "wf-1",
		Version:     1,
		Status:      models.ExecutionStatusPending,
		TriggeredBy: "u1",
		Parameters:  map[string]any{"x": "y"},
		StartedAt:   time.Now().UTC(),
	}

	require.NoError(t, store.Create(ctx, execution))
	require.NoError(t, store.SetStatus(ctx, execution.ID, models.ExecutionStatusRunning))

	for i := range 5 {
		require.NoError(t, store.AppendLog(ctx, execution.ID, models.ExecutionLog{
			Timestamp: time.Now().UTC(),
			NodeID:    "n",
			Level:     models.LogLevelInfo,
			Message:   string(rune('a' + i)),
		}))
	}

	require.NoError(t, store.Complete(ctx, execution.ID, map[string]any{"ok": true}))

	err := store.SetStatus(ctx, execution.ID, models.ExecutionStatusRunning)
	assert.True(t, persistence.IsInvalidStatusTransition(err))

	err = store.Fail(ctx, execution.ID, "late failure")
	assert.True(t, persistence.IsInvalidStatusTransition(err))

	loaded, err := store.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.NotNil(t, loaded.CompletedAt)
	require.Len(t, loaded.Logs, 5)
	assert.Equal(t, "a", loaded.Logs[0].Message)
	assert.Equal(t, "e", loaded.Logs[4].Message)
	assert.Equal(t, true, loaded.Result["ok"])
	assert.Empty(t, loaded.ErrorMessage, "a rejected Fail leaves the record untouched")

	list, err := store.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.GetByID(ctx, "missing")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestTriggerRepository_Postgres(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.TriggerRepository()

	trigger := &models.WorkflowTrigger{
		ID:         uuid.New().String(),
		Name:       "nightly",
		WorkflowID: "wf-1",
		ProjectID:  "p1",
		Type:       models.TriggerTypeScheduled,
		Config:     models.TriggerConfig{CronExpression: "0 0 * * *", Timezone: "UTC"},
		Enabled:    true,
	}

	require.NoError(t, repo.Save(ctx, trigger))

	found, err := repo.GetByProjectAndName(ctx, "p1", "nightly")
	require.NoError(t, err)
	assert.Equal(t, trigger.ID, found.ID)
	assert.Equal(t, "0 0 * * *", found.Config.CronExpression)

	now := time.Now().UTC()
	trigger.ExecutionCount = 2
	trigger.LastExecutionAt = &now
	trigger.LastExecutionStatus = models.TriggerExecutionStarted
	require.NoError(t, repo.Save(ctx, trigger))

	enabled, err := repo.ListEnabledByType(ctx, models.TriggerTypeScheduled)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, int64(2), enabled[0].ExecutionCount)
	assert.NotNil(t, enabled[0].LastExecutionAt)

	byWorkflow, err := repo.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)

	require.NoError(t, repo.Delete(ctx, trigger.ID))

	_, err = repo.GetByID(ctx, trigger.ID)
	assert.True(t, persistence.IsTriggerNotFound(err))
}
