package eventbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowgraph/pkg/channels/gochannel"
	"github.com/dukex/flowgraph/pkg/eventbus"
	"github.com/dukex/flowgraph/pkg/events"
	"github.com/dukex/flowgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(testutil.DiscardLogger(), pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan *events.DomainEvent, 1)

	require.NoError(t, bus.Handle(events.DomainEventType, func(_ context.Context, event any) error {
		received <- event.(*events.DomainEvent)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.NewDomainEvent("order.created", "shop", map[string]any{"order_id": "42"})
	require.NoError(t, bus.Publish(ctx, sent.ID, sent))

	require.Len(t, received, 1, "publish returns after the handler acked")

	got := <-received
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "order.created", got.Name)
	assert.Equal(t, "shop", got.Source)
	assert.Equal(t, "42", got.Data["order_id"])
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan any, 2)

	require.NoError(t, bus.Handle(events.WorkflowExecutionFailedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	started := events.WorkflowExecutionStarted{BaseEvent: events.NewBaseEvent(events.WorkflowExecutionStartedEvent, "wf")}
	require.NoError(t, bus.Publish(ctx, "wf", started))

	failed := events.WorkflowExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionFailedEvent, "wf"),
		ExecutionID: "exec-1",
		Error:       "boom",
	}
	require.NoError(t, bus.Publish(ctx, "wf", failed))

	require.Len(t, received, 1)

	event, ok := (<-received).(*events.WorkflowExecutionFailed)
	require.True(t, ok)
	assert.Equal(t, "exec-1", event.ExecutionID)
	assert.Equal(t, "boom", event.Error)
}

func TestWatermillEventBus_HandleUnknownType(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	err := bus.Handle("nope", func(context.Context, any) error { return errors.New("unreachable") })
	require.Error(t, err)
}
