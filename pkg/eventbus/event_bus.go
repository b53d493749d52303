// Package eventbus publishes and dispatches events over watermill.
package eventbus

import (
	"context"

	"github.com/dukex/flowgraph/pkg/events"
)

// Event is anything that can travel on the bus. The type selects the decoder
// on the consuming side.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is the write side used by the orchestrator, the trigger
// dispatcher and the workflow service.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes decoded events to one handler per type.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives the decoded event as a pointer to its concrete type.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

var _ EventBus = (*WatermillEventBus)(nil)
