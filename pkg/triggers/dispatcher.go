// Package triggers funnels every trigger channel into the orchestrator. A fire
// holds the per-trigger lock while it starts the execution and records the
// outcome on the trigger.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/dukex/flowgraph/pkg/eventbus"
	"github.com/dukex/flowgraph/pkg/events"
	"github.com/dukex/flowgraph/pkg/locker"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/monitor"
	"github.com/dukex/flowgraph/pkg/workflow"
)

var (
	ErrTriggerDisabled = errors.New("trigger is disabled")
	ErrTriggerType     = errors.New("unexpected trigger type")
	ErrNotDue          = errors.New("trigger is not due")
	ErrExhausted       = errors.New("trigger has no fires left")
)

// DefaultUserID is recorded as the initiator when neither the caller nor the
// trigger names one.
const DefaultUserID = "system"

// Executor starts workflow executions.
type Executor interface {
	Execute(ctx context.Context, req workflow.ExecuteRequest) (*models.WorkflowExecution, error)
}

// TriggerStore is the part of the trigger manager the dispatcher needs.
type TriggerStore interface {
	Get(ctx context.Context, id string) (*models.WorkflowTrigger, error)
	Lock(ctx context.Context, id string) (locker.Unlock, error)
	RecordFire(ctx context.Context, trigger *models.WorkflowTrigger, executionID string, fireErr error) error
	Retire(ctx context.Context, trigger *models.WorkflowTrigger, reason string) error
}

// Firer is implemented by Dispatcher; channels depend on it.
type Firer interface {
	Fire(ctx context.Context, req FireRequest) (*models.WorkflowExecution, error)
}

// FireRequest describes one activation of a trigger.
type FireRequest struct {
	TriggerID string
	// Type, when set, must match the stored trigger type.
	Type       models.TriggerType
	UserID     string
	Parameters map[string]any
	// Check runs under the trigger lock against the freshly loaded trigger.
	// ErrNotDue skips the fire; ErrExhausted disables the trigger.
	Check func(trigger *models.WorkflowTrigger) error
}

type Dispatcher struct {
	logger    *slog.Logger
	triggers  TriggerStore
	executor  Executor
	publisher eventbus.EventPublisher
	metrics   *monitor.Metrics
}

type Option func(*Dispatcher)

func WithEventPublisher(p eventbus.EventPublisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(logger *slog.Logger, triggers TriggerStore, executor Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:   logger.With("module", "trigger_dispatcher"),
		triggers: triggers,
		executor: executor,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Fire starts an execution of the trigger's workflow with req.Parameters
// layered over the trigger's default inputs. A failure to start is recorded on
// the trigger and returned; the execution returned alongside it, if any, is the
// FAILED record.
func (d *Dispatcher) Fire(ctx context.Context, req FireRequest) (*models.WorkflowExecution, error) {
	unlock, err := d.triggers.Lock(ctx, req.TriggerID)
	if err != nil {
		return nil, err
	}

	defer func() {
		err := unlock(context.WithoutCancel(ctx))
		if err != nil {
			d.logger.WarnContext(ctx, "failed to release trigger lock", "trigger_id", req.TriggerID, "error", err)
		}
	}()

	trigger, err := d.triggers.Get(ctx, req.TriggerID)
	if err != nil {
		return nil, err
	}

	if req.Type != "" && trigger.Type != req.Type {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrTriggerType, trigger.ID, trigger.Type, req.Type)
	}

	if !trigger.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrTriggerDisabled, trigger.ID)
	}

	if req.Check != nil {
		err = req.Check(trigger)

		switch {
		case errors.Is(err, ErrExhausted):
			retireErr := d.triggers.Retire(ctx, trigger, err.Error())
			if retireErr != nil {
				return nil, errors.Join(err, retireErr)
			}

			return nil, err
		case err != nil:
			return nil, err
		}
	}

	params := make(map[string]any, len(trigger.DefaultInputs)+len(req.Parameters))
	maps.Copy(params, trigger.DefaultInputs)
	maps.Copy(params, req.Parameters)

	execution, fireErr := d.executor.Execute(ctx, workflow.ExecuteRequest{
		WorkflowID: trigger.WorkflowID,
		UserID:     initiator(req.UserID, trigger),
		TriggerID:  trigger.ID,
		Parameters: params,
	})

	executionID := ""
	if execution != nil {
		executionID = execution.ID
	}

	err = d.triggers.RecordFire(ctx, trigger, executionID, fireErr)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to record trigger fire", "trigger_id", trigger.ID, "error", err)
	}

	d.observe(ctx, trigger, executionID, fireErr)

	if fireErr != nil {
		return execution, fmt.Errorf("trigger %s failed to start workflow %s: %w", trigger.ID, trigger.WorkflowID, fireErr)
	}

	return execution, nil
}

func (d *Dispatcher) observe(ctx context.Context, trigger *models.WorkflowTrigger, executionID string, fireErr error) {
	result := "started"
	event := events.TriggerFired{
		BaseEvent:   events.NewBaseEvent(events.TriggerFiredEvent, trigger.WorkflowID),
		TriggerID:   trigger.ID,
		TriggerType: string(trigger.Type),
		ExecutionID: executionID,
	}

	if fireErr != nil {
		result = "failed"
		event.Error = fireErr.Error()

		d.logger.WarnContext(ctx, "trigger fire failed", "trigger_id", trigger.ID, "error", fireErr)
	} else {
		d.logger.InfoContext(ctx, "trigger fired",
			"trigger_id", trigger.ID, "workflow_id", trigger.WorkflowID, "execution_id", executionID)
	}

	if d.metrics != nil {
		d.metrics.TriggerFires.WithLabelValues(string(trigger.Type), result).Inc()
	}

	if d.publisher == nil {
		return
	}

	err := d.publisher.Publish(context.WithoutCancel(ctx), trigger.WorkflowID, event)
	if err != nil {
		d.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func initiator(userID string, trigger *models.WorkflowTrigger) string {
	switch {
	case userID != "":
		return userID
	case trigger.CreatedBy != "":
		return trigger.CreatedBy
	default:
		return DefaultUserID
	}
}
