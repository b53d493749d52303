// Package events defines the messages published on the event bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "flowgraph.events"

const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"
)

const (
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
	WorkflowExecutionCancelledEvent EventType = "workflow.execution.cancelled"

	WorkflowPublishedEvent EventType = "workflow.published"

	TriggerFiredEvent EventType = "trigger.fired"

	// DomainEventType carries external events consumed by event triggers.
	DomainEventType EventType = "domain.event"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Version     int            `json:"version"`
	TriggerID   string         `json:"trigger_id,omitempty"`
	TriggeredBy string         `json:"triggered_by"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func (e WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID  string         `json:"execution_id"`
	Result       map[string]any `json:"result,omitempty"`
	SkippedNodes []string       `json:"skipped_nodes,omitempty"`
	Duration     time.Duration  `json:"duration"`
}

func (e WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id,omitempty"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

type WorkflowExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason,omitempty"`
}

func (e WorkflowExecutionCancelled) GetType() EventType {
	return WorkflowExecutionCancelledEvent
}

type WorkflowPublished struct {
	BaseEvent

	Version     int    `json:"version"`
	PublishedBy string `json:"published_by,omitempty"`
}

func (e WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}

// TriggerFired is published after a trigger channel started an execution.
type TriggerFired struct {
	BaseEvent

	TriggerID   string `json:"trigger_id"`
	TriggerType string `json:"trigger_type"`
	ExecutionID string `json:"execution_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (e TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

// DomainEvent is an application event, such as "order.created", that event
// triggers match on by name and source.
type DomainEvent struct {
	BaseEvent

	Name      string         `json:"name"                 validate:"required"`
	Source    string         `json:"source,omitempty"`
	ProjectID string         `json:"project_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func (e DomainEvent) GetType() EventType {
	return DomainEventType
}

// NewDomainEvent stamps an id and timestamp onto an application event.
func NewDomainEvent(name, source string, data map[string]any) *DomainEvent {
	return &DomainEvent{
		BaseEvent: NewBaseEvent(DomainEventType, ""),
		Name:      name,
		Source:    source,
		Data:      data,
	}
}
