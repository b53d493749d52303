// Package event fires EVENT triggers from domain events delivered by the bus.
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/dukex/flowgraph/pkg/eventbus"
	"github.com/dukex/flowgraph/pkg/events"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/triggers"
)

type TriggerLister interface {
	ListEnabledByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error)
}

type Listener struct {
	logger     *slog.Logger
	triggers   TriggerLister
	dispatcher triggers.Firer
}

func NewListener(logger *slog.Logger, lister TriggerLister, dispatcher triggers.Firer) *Listener {
	return &Listener{
		logger:     logger.With("module", "event_trigger_listener"),
		triggers:   lister,
		dispatcher: dispatcher,
	}
}

// Register subscribes the listener to domain events on sub.
func (l *Listener) Register(sub eventbus.EventSubscriber) error {
	return sub.Handle(events.DomainEventType, l.Handle)
}

// Handle is the event bus handler. Failing to list triggers is returned so the
// message is redelivered; a failed fire is only logged.
func (l *Listener) Handle(ctx context.Context, event any) error {
	domainEvent, ok := event.(*events.DomainEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	_, err := l.Dispatch(ctx, domainEvent)

	return err
}

// Dispatch fires every enabled event trigger matching evt and returns the
// executions started.
func (l *Listener) Dispatch(ctx context.Context, evt *events.DomainEvent) ([]*models.WorkflowExecution, error) {
	list, err := l.triggers.ListEnabledByType(ctx, models.TriggerTypeEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to list event triggers: %w", err)
	}

	started := make([]*models.WorkflowExecution, 0)

	for _, trigger := range list {
		if !Matches(trigger, evt) {
			continue
		}

		execution, err := l.dispatcher.Fire(ctx, triggers.FireRequest{
			TriggerID:  trigger.ID,
			Type:       models.TriggerTypeEvent,
			Parameters: Parameters(trigger, evt),
			Check: func(current *models.WorkflowTrigger) error {
				if !Matches(current, evt) {
					return triggers.ErrNotDue
				}

				return nil
			},
		})

		switch {
		case err == nil:
			started = append(started, execution)
		case errors.Is(err, triggers.ErrNotDue), errors.Is(err, triggers.ErrTriggerDisabled):
		default:
			l.logger.ErrorContext(ctx, "event trigger failed",
				"trigger_id", trigger.ID, "event_id", evt.ID, "error", err)
		}
	}

	l.logger.InfoContext(ctx, "domain event processed",
		"event_id", evt.ID, "event_name", evt.Name, "executions", len(started))

	return started, nil
}

// Matches reports whether evt satisfies the event type, source, project and
// data filters of trigger.
func Matches(trigger *models.WorkflowTrigger, evt *events.DomainEvent) bool {
	config := trigger.Config

	if config.EventType == "" || config.EventType != evt.Name {
		return false
	}

	if config.EventSource != "" && config.EventSource != evt.Source {
		return false
	}

	if evt.ProjectID != "" && evt.ProjectID != trigger.ProjectID {
		return false
	}

	for key, want := range config.EventFilters {
		got, ok := evt.Data[key]
		if !ok || !equal(want, got) {
			return false
		}
	}

	return true
}

// Parameters builds the workflow inputs for a fire caused by evt. Mapped data
// keys are copied under their parameter names; without a mapping the whole
// data map is passed under "event".
func Parameters(trigger *models.WorkflowTrigger, evt *events.DomainEvent) map[string]any {
	params := map[string]any{
		"event_id":     evt.ID,
		"event_type":   evt.Name,
		"event_source": evt.Source,
		"trigger_id":   trigger.ID,
	}

	if len(trigger.Config.EventDataMapping) == 0 {
		params["event"] = evt.Data

		return params
	}

	for field, name := range trigger.Config.EventDataMapping {
		if value, ok := evt.Data[field]; ok && value != nil {
			params[name] = value
		}
	}

	return params
}

// equal compares filter values that may have gone through different JSON
// round trips, so numbers are compared as float64.
func equal(want, got any) bool {
	wantNumber, wantOK := toFloat(want)
	gotNumber, gotOK := toFloat(got)

	if wantOK && gotOK {
		return wantNumber == gotNumber
	}

	return reflect.DeepEqual(want, got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
