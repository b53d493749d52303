package event_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowgraph/pkg/channels/gochannel"
	"github.com/dukex/flowgraph/pkg/eventbus"
	"github.com/dukex/flowgraph/pkg/events"
	"github.com/dukex/flowgraph/pkg/locker"
	"github.com/dukex/flowgraph/pkg/mocks"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence/file"
	"github.com/dukex/flowgraph/pkg/services"
	"github.com/dukex/flowgraph/pkg/testutil"
	"github.com/dukex/flowgraph/pkg/triggers"
	"github.com/dukex/flowgraph/pkg/triggers/event"
	"github.com/dukex/flowgraph/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	t.Parallel()

	evt := events.NewDomainEvent("order.created", "shop", map[string]any{"status": "paid", "total": float64(30)})
	evt.ProjectID = "p1"

	tests := []struct {
		name   string
		config models.TriggerConfig
		want   bool
	}{
		{name: "type only", config: models.TriggerConfig{EventType: "order.created"}, want: true},
		{name: "other type", config: models.TriggerConfig{EventType: "order.paid"}},
		{name: "source matches", config: models.TriggerConfig{EventType: "order.created", EventSource: "shop"}, want: true},
		{name: "source differs", config: models.TriggerConfig{EventType: "order.created", EventSource: "crm"}},
		{
			name:   "filters match across number types",
			config: models.TriggerConfig{EventType: "order.created", EventFilters: map[string]any{"status": "paid", "total": 30}},
			want:   true,
		},
		{
			name:   "filter value differs",
			config: models.TriggerConfig{EventType: "order.created", EventFilters: map[string]any{"status": "refunded"}},
		},
		{
			name:   "filter key missing",
			config: models.TriggerConfig{EventType: "order.created", EventFilters: map[string]any{"coupon": "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			trigger := &models.WorkflowTrigger{ProjectID: "p1", Config: tt.config}
			assert.Equal(t, tt.want, event.Matches(trigger, evt))
		})
	}

	other := &models.WorkflowTrigger{ProjectID: "p2", Config: models.TriggerConfig{EventType: "order.created"}}
	assert.False(t, event.Matches(other, evt), "project scoped events skip other projects")
}

func TestParameters(t *testing.T) {
	t.Parallel()

	evt := events.NewDomainEvent("order.created", "shop", map[string]any{"id": "o-1", "total": 30})

	unmapped := event.Parameters(&models.WorkflowTrigger{ID: "t1"}, evt)
	assert.Equal(t, evt.Data, unmapped["event"])
	assert.Equal(t, "order.created", unmapped["event_type"])
	assert.Equal(t, "t1", unmapped["trigger_id"])

	mapped := event.Parameters(&models.WorkflowTrigger{
		ID:     "t1",
		Config: models.TriggerConfig{EventDataMapping: map[string]string{"id": "order_id", "missing": "x"}},
	}, evt)
	assert.Equal(t, "o-1", mapped["order_id"])
	assert.NotContains(t, mapped, "x")
	assert.NotContains(t, mapped, "event")
}

func TestListener_Dispatch(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	definition := testutil.Definition("p1", nil, nil)
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), definition))

	manager := services.NewTriggerManager(testutil.DiscardLogger(), store, locker.NewLocal())

	create := func(name, eventType string) *models.WorkflowTrigger {
		trigger, err := manager.Create(t.Context(), services.CreateTriggerRequest{
			Name: name, WorkflowID: definition.ID, ProjectID: "p1", Type: models.TriggerTypeEvent,
			Config: models.TriggerConfig{EventType: eventType},
		})
		require.NoError(t, err)

		return trigger
	}

	first := create("first", "order.created")
	second := create("second", "order.created")
	create("unrelated", "order.refunded")

	executor := &mocks.MockExecutor{}
	executor.On("Execute", mock.Anything, mock.MatchedBy(func(req workflow.ExecuteRequest) bool {
		return req.TriggerID == first.ID || req.TriggerID == second.ID
	})).Return(&models.WorkflowExecution{ID: "exec"}, nil).Twice()

	dispatcher := triggers.NewDispatcher(testutil.DiscardLogger(), manager, executor)
	listener := event.NewListener(testutil.DiscardLogger(), manager, dispatcher)

	require.NoError(t, listener.Handle(t.Context(), events.NewDomainEvent("order.created", "shop", nil)))

	executor.AssertExpectations(t)

	for _, id := range []string{first.ID, second.ID} {
		stored, err := manager.Get(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.ExecutionCount)
	}
}

func TestListener_HandleErrors(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockTriggerRepository{}
	repo.On("ListEnabledByType", mock.Anything, models.TriggerTypeEvent).Return(nil, assert.AnError)

	listener := event.NewListener(testutil.DiscardLogger(), repo, nil)

	require.ErrorIs(t, listener.Handle(t.Context(), events.NewDomainEvent("x", "", nil)), assert.AnError)
	require.Error(t, listener.Handle(t.Context(), events.TriggerFired{}))
}

func TestListener_Register(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.DomainEventType, mock.Anything).Return(nil).Once()

	listener := event.NewListener(testutil.DiscardLogger(), &mocks.MockTriggerRepository{}, nil)

	require.NoError(t, listener.Register(bus))
	bus.AssertExpectations(t)
}

func TestListener_FiresFromBus(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	definition := testutil.Definition("p1", nil, nil)
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), definition))

	manager := services.NewTriggerManager(testutil.DiscardLogger(), store, locker.NewLocal())

	trigger, err := manager.Create(t.Context(), services.CreateTriggerRequest{
		Name: "paid", WorkflowID: definition.ID, ProjectID: "p1", Type: models.TriggerTypeEvent,
		Config: models.TriggerConfig{
			EventType:        "order.paid",
			EventDataMapping: map[string]string{"order_id": "order"},
		},
	})
	require.NoError(t, err)

	var captured workflow.ExecuteRequest

	executor := &mocks.MockExecutor{}
	executor.On("Execute", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured, _ = args.Get(1).(workflow.ExecuteRequest)
	}).Return(&models.WorkflowExecution{ID: "exec-7"}, nil).Once()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(testutil.DiscardLogger(), pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	dispatcher := triggers.NewDispatcher(testutil.DiscardLogger(), manager, executor)
	listener := event.NewListener(testutil.DiscardLogger(), manager, dispatcher)

	require.NoError(t, listener.Register(bus))
	require.NoError(t, bus.Subscribe(t.Context()))

	evt := events.NewDomainEvent("order.paid", "billing", map[string]any{"order_id": "o-3"})
	evt.ProjectID = "p1"
	require.NoError(t, bus.Publish(t.Context(), evt.Name, evt))

	executor.AssertExpectations(t)
	assert.Equal(t, trigger.ID, captured.TriggerID)
	assert.Equal(t, "o-3", captured.Parameters["order"])

	stored, err := manager.Get(t.Context(), trigger.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ExecutionCount)
	assert.Equal(t, "exec-7", stored.LastExecutionID)
}
