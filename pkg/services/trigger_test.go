package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowgraph/pkg/locker"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/persistence/file"
	"github.com/dukex/flowgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTriggerManager(t *testing.T) (*TriggerManager, *file.Persistence, string) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	nodes, edges := validGraph()
	definition := testutil.Definition("p1", nodes, edges)
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), definition))

	manager := NewTriggerManager(testutil.DiscardLogger(), store, locker.NewLocal())
	manager.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	return manager, store, definition.ID
}

func TestTriggerManager_UniqueNamePerProject(t *testing.T) {
	t.Parallel()

	manager, store, workflowID := newTriggerManager(t)
	other := testutil.Definition("p2", nil, nil)
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), other))

	_, err := manager.Create(t.Context(), CreateTriggerRequest{
		Name: "nightly", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeManual,
	})
	require.NoError(t, err)

	_, err = manager.Create(t.Context(), CreateTriggerRequest{
		Name: "nightly", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeManual,
	})
	require.ErrorIs(t, err, ErrDuplicateTriggerName)
	assert.True(t, IsConflictError(err))

	_, err = manager.Create(t.Context(), CreateTriggerRequest{
		Name: "nightly", WorkflowID: other.ID, ProjectID: "p2", Type: models.TriggerTypeManual,
	})
	require.NoError(t, err)
}

func TestTriggerManager_ConcurrentCreateSameName(t *testing.T) {
	t.Parallel()

	manager, store, workflowID := newTriggerManager(t)

	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := manager.Create(t.Context(), CreateTriggerRequest{
				Name: "nightly", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeManual,
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrDuplicateTriggerName):
				conflicts++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)

	triggers, err := store.TriggerRepository().ListByProject(t.Context(), "p1")
	require.NoError(t, err)
	assert.Len(t, triggers, 1)
}

func TestTriggerManager_ConcurrentRenameToSameName(t *testing.T) {
	t.Parallel()

	manager, _, workflowID := newTriggerManager(t)

	ids := make([]string, 0, 4)

	for _, name := range []string{"a", "b", "c", "d"} {
		trigger, err := manager.Create(t.Context(), CreateTriggerRequest{
			Name: name, WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeManual,
		})
		require.NoError(t, err)

		ids = append(ids, trigger.ID)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		renamed int
	)

	for _, id := range ids {
		wg.Add(1)

		go func() {
			defer wg.Done()

			target := "shared"

			_, err := manager.Update(t.Context(), id, UpdateTriggerRequest{Name: &target})
			if err == nil {
				mu.Lock()
				renamed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, renamed)
}

func TestTriggerManager_CreateAcceptsCronDialects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		next time.Time
	}{
		{name: "five fields", expr: "0 13 * * *", next: time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)},
		{name: "seconds and question mark", expr: "0 0 1 * * ?", next: time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC)},
		{name: "every five minutes with seconds", expr: "0 */5 * * * *", next: time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC)},
		{name: "named weekdays", expr: "0 0 9 * * MON-FRI", next: time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)},
		{name: "daily descriptor", expr: "@daily", next: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			manager, _, workflowID := newTriggerManager(t)

			trigger, err := manager.Create(t.Context(), CreateTriggerRequest{
				Name: "cron", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeScheduled,
				Config: models.TriggerConfig{CronExpression: tt.expr},
			})
			require.NoError(t, err)

			stats, err := manager.Stats(t.Context(), trigger.ID)
			require.NoError(t, err)
			require.NotNil(t, stats.NextExecutionAt)
			assert.Equal(t, tt.next, *stats.NextExecutionAt)
		})
	}
}

func TestTriggerManager_CreateRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	tests := []struct {
		name    string
		req     CreateTriggerRequest
		wantErr error
	}{
		{
			name:    "invalid cron",
			req:     CreateTriggerRequest{Type: models.TriggerTypeScheduled, Config: models.TriggerConfig{CronExpression: "every day"}},
			wantErr: ErrInvalidCron,
		},
		{
			name:    "missing cron",
			req:     CreateTriggerRequest{Type: models.TriggerTypeScheduled},
			wantErr: ErrInvalidCron,
		},
		{
			name: "unknown timezone",
			req: CreateTriggerRequest{Type: models.TriggerTypeScheduled, Config: models.TriggerConfig{
				CronExpression: "0 * * * *", Timezone: "Mars/Olympus",
			}},
			wantErr: ErrInvalidTriggerConfig,
		},
		{
			name: "end before start",
			req: CreateTriggerRequest{Type: models.TriggerTypeScheduled, Config: models.TriggerConfig{
				CronExpression: "0 * * * *", StartDate: &start, EndDate: &before,
			}},
			wantErr: ErrInvalidTriggerConfig,
		},
		{
			name:    "event without type",
			req:     CreateTriggerRequest{Type: models.TriggerTypeEvent},
			wantErr: ErrInvalidTriggerConfig,
		},
		{
			name: "webhook with unsupported method",
			req: CreateTriggerRequest{Type: models.TriggerTypeWebhook, Config: models.TriggerConfig{
				AllowedMethods: []string{"PATCH"},
			}},
			wantErr: ErrInvalidTriggerConfig,
		},
		{
			name: "webhook with broken body schema",
			req: CreateTriggerRequest{Type: models.TriggerTypeWebhook, Config: models.TriggerConfig{
				BodySchema: map[string]any{"type": 12},
			}},
			wantErr: ErrInvalidTriggerConfig,
		},
		{
			name:    "unknown type",
			req:     CreateTriggerRequest{Type: "CARRIER_PIGEON"},
			wantErr: ErrInvalidTriggerType,
		},
		{
			name: "negative retry attempts",
			req: CreateTriggerRequest{Type: models.TriggerTypeManual, Config: models.TriggerConfig{
				RetryAttempts: -1,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			manager, store, workflowID := newTriggerManager(t)

			tt.req.Name = "broken"
			tt.req.WorkflowID = workflowID
			tt.req.ProjectID = "p1"

			_, err := manager.Create(t.Context(), tt.req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}

			_, err = store.TriggerRepository().GetByProjectAndName(t.Context(), "p1", "broken")
			assert.True(t, persistence.IsTriggerNotFound(err), "nothing persisted")
		})
	}
}

func TestTriggerManager_CreateUnknownWorkflow(t *testing.T) {
	t.Parallel()

	manager, _, _ := newTriggerManager(t)

	_, err := manager.Create(t.Context(), CreateTriggerRequest{
		Name: "x", WorkflowID: "missing", ProjectID: "p1", Type: models.TriggerTypeManual,
	})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestTriggerManager_CreateAppliesDefaults(t *testing.T) {
	t.Parallel()

	manager, _, workflowID := newTriggerManager(t)

	webhook, err := manager.Create(t.Context(), CreateTriggerRequest{
		Name: "hook", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeWebhook,
		Config: models.TriggerConfig{AllowedMethods: []string{"post", "put"}},
	})
	require.NoError(t, err)
	assert.True(t, webhook.Enabled)
	assert.Len(t, webhook.Config.WebhookSecret, 64)
	assert.Equal(t, []string{"POST", "PUT"}, webhook.Config.AllowedMethods)
	assert.Equal(t, models.DefaultTriggerTimeoutSeconds, webhook.Config.TimeoutSeconds)

	disabled := false
	scheduled, err := manager.Create(t.Context(), CreateTriggerRequest{
		Name: "cron", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeScheduled,
		Config:  models.TriggerConfig{CronExpression: "0 0 * * *"},
		Enabled: &disabled,
	})
	require.NoError(t, err)
	assert.False(t, scheduled.Enabled)
	assert.Equal(t, "UTC", scheduled.Config.Timezone)
}

func TestTriggerManager_UpdateRenameAndEnable(t *testing.T) {
	t.Parallel()

	manager, _, workflowID := newTriggerManager(t)

	first, err := manager.Create(t.Context(), CreateTriggerRequest{
		Name: "first", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeWebhook,
	})
	require.NoError(t, err)

	_, err = manager.Create(t.Context(), CreateTriggerRequest{
		Name: "second", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeManual,
	})
	require.NoError(t, err)

	taken := "second"
	_, err = manager.Update(t.Context(), first.ID, UpdateTriggerRequest{Name: &taken})
	require.ErrorIs(t, err, ErrDuplicateTriggerName)

	same := "first"
	_, err = manager.Update(t.Context(), first.ID, UpdateTriggerRequest{Name: &same})
	require.NoError(t, err)

	updated, err := manager.Update(t.Context(), first.ID, UpdateTriggerRequest{
		Config: &models.TriggerConfig{RequiredHeaders: map[string]string{"X-Tenant": "acme"}},
	})
	require.NoError(t, err)
	assert.Equal(t, first.Config.WebhookSecret, updated.Config.WebhookSecret, "secret survives config edits")
	assert.Equal(t, []string{"POST"}, updated.Config.AllowedMethods)

	disabled, err := manager.Disable(t.Context(), first.ID)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	enabled, err := manager.ListEnabled(t.Context())
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	reenabled, err := manager.Enable(t.Context(), first.ID)
	require.NoError(t, err)
	assert.True(t, reenabled.Enabled)

	_, err = manager.Enable(t.Context(), "missing")
	assert.True(t, persistence.IsTriggerNotFound(err))
}

func TestTriggerManager_Lists(t *testing.T) {
	t.Parallel()

	manager, _, workflowID := newTriggerManager(t)

	for _, req := range []CreateTriggerRequest{
		{Name: "a", Type: models.TriggerTypeManual},
		{Name: "b", Type: models.TriggerTypeEvent, Config: models.TriggerConfig{EventType: "order.created"}},
		{Name: "c", Type: models.TriggerTypeEvent, Config: models.TriggerConfig{EventType: "order.paid"}},
	} {
		req.WorkflowID = workflowID
		req.ProjectID = "p1"

		_, err := manager.Create(t.Context(), req)
		require.NoError(t, err)
	}

	byType, err := manager.ListByType(t.Context(), models.TriggerTypeEvent)
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	byProject, err := manager.ListByProject(t.Context(), "p1")
	require.NoError(t, err)
	assert.Len(t, byProject, 3)

	byWorkflow, err := manager.ListByWorkflow(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 3)

	_, err = manager.ListByType(t.Context(), "FAX")
	require.ErrorIs(t, err, ErrInvalidTriggerType)
}

func TestTriggerManager_StatsAndRecordFire(t *testing.T) {
	t.Parallel()

	manager, _, workflowID := newTriggerManager(t)

	trigger, err := manager.Create(t.Context(), CreateTriggerRequest{
		Name: "hourly", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeScheduled,
		Config: models.TriggerConfig{CronExpression: "0 * * * *"},
	})
	require.NoError(t, err)

	unlock, err := manager.Lock(t.Context(), trigger.ID)
	require.NoError(t, err)
	require.NoError(t, manager.RecordFire(t.Context(), trigger, "exec-1", nil))
	require.NoError(t, manager.RecordFire(t.Context(), trigger, "", errors.New("workflow archived")))
	require.NoError(t, unlock(t.Context()))

	stats, err := manager.Stats(t.Context(), trigger.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.ExecutionCount)
	assert.Equal(t, models.TriggerExecutionFailed, stats.LastExecutionStatus)
	require.NotNil(t, stats.NextExecutionAt)
	assert.Equal(t, time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC), *stats.NextExecutionAt)

	stored, err := manager.Get(t.Context(), trigger.ID)
	require.NoError(t, err)
	assert.Equal(t, "exec-1", stored.LastExecutionID)
}

func TestTriggerManager_Delete(t *testing.T) {
	t.Parallel()

	manager, _, workflowID := newTriggerManager(t)

	trigger, err := manager.Create(t.Context(), CreateTriggerRequest{
		Name: "gone", WorkflowID: workflowID, ProjectID: "p1", Type: models.TriggerTypeManual,
	})
	require.NoError(t, err)

	require.NoError(t, manager.Delete(t.Context(), trigger.ID))

	_, err = manager.Get(t.Context(), trigger.ID)
	assert.True(t, persistence.IsTriggerNotFound(err))
}
