// Package workflow runs workflow executions: it plans the graph, walks the
// nodes in order, hands outputs downstream and records every transition in
// the execution store.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowgraph/pkg/eventbus"
	"github.com/dukex/flowgraph/pkg/events"
	"github.com/dukex/flowgraph/pkg/graph"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/monitor"
	"github.com/dukex/flowgraph/pkg/otelhelper"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ExecuteRequest asks for a new run of a workflow's current version.
type ExecuteRequest struct {
	WorkflowID string
	UserID     string
	TriggerID  string
	Parameters map[string]any
}

type Orchestrator struct {
	logger     *slog.Logger
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionStore
	registry   *registry.Registry
	validator  *graph.Validator

	monitor   *monitor.ErrorMonitor
	metrics   *monitor.Metrics
	publisher eventbus.EventPublisher
	tracer    trace.Tracer

	mu      sync.Mutex
	running map[string]context.CancelCauseFunc
	wg      sync.WaitGroup
}

type Option func(*Orchestrator)

func WithMonitor(m *monitor.ErrorMonitor) Option {
	return func(o *Orchestrator) { o.monitor = m }
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithEventPublisher(p eventbus.EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func NewOrchestrator(
	logger *slog.Logger,
	workflows persistence.WorkflowRepository,
	executions persistence.ExecutionStore,
	reg *registry.Registry,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		logger:     logger.With("module", "orchestrator"),
		workflows:  workflows,
		executions: executions,
		registry:   reg,
		validator:  graph.NewValidator(logger),
		tracer:     otel.Tracer("flowgraph/workflow"),
		running:    make(map[string]context.CancelCauseFunc),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Execute creates a RUNNING execution, plans the graph and starts the node
// walk in the background. Resolution and validation failures are returned;
// a plan that fails validation still leaves a FAILED execution behind.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (*models.WorkflowExecution, error) {
	definition, err := o.workflows.GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if definition.Status == models.WorkflowStatusArchived {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowArchived, definition.ID)
	}

	version := definition.Current()
	if version == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCurrentVersion, definition.ID)
	}

	execution := &models.WorkflowExecution{
		ID:          uuid.NewString(),
		WorkflowID:  definition.ID,
		Version:     version.Version,
		Status:      models.ExecutionStatusRunning,
		TriggeredBy: req.UserID,
		TriggerID:   req.TriggerID,
		Parameters:  req.Parameters,
		StartedAt:   time.Now().UTC(),
		Logs:        make([]models.ExecutionLog, 0),
	}

	err = o.executions.Create(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	logger := o.logger.With("workflow_id", definition.ID, "execution_id", execution.ID)

	plan, err := o.validator.Plan(ctx, version.Nodes, version.Edges)
	if err != nil {
		logger.WarnContext(ctx, "workflow failed validation", "error", err)

		o.finishFailed(context.WithoutCancel(ctx), execution, "", err.Error(), 0)

		return execution, err
	}

	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))

	var stopTimeout context.CancelFunc = func() {}

	if definition.Metadata.TimeoutSeconds > 0 {
		runCtx, stopTimeout = context.WithTimeoutCause(runCtx,
			time.Duration(definition.Metadata.TimeoutSeconds)*time.Second, ErrExecutionTimeout)
	}

	o.mu.Lock()
	o.running[execution.ID] = cancel
	o.mu.Unlock()

	o.appendLog(ctx, execution.ID, "", models.LogLevelInfo,
		fmt.Sprintf("execution started for version %d with %d nodes", version.Version, len(plan)))
	o.publish(ctx, definition.ID, events.WorkflowExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionStartedEvent, definition.ID),
		ExecutionID: execution.ID,
		Version:     version.Version,
		TriggerID:   req.TriggerID,
		TriggeredBy: req.UserID,
		Parameters:  req.Parameters,
	})

	logger.InfoContext(ctx, "execution started", "version", version.Version)

	started := *execution

	o.wg.Add(1)

	go func() {
		defer o.wg.Done()
		defer stopTimeout()
		defer o.release(execution.ID)

		o.run(runCtx, execution, definition, version, plan)
	}()

	return &started, nil
}

// Cancel moves a PENDING or RUNNING execution to CANCELLED. A node already
// running is left to finish; no further node is scheduled.
func (o *Orchestrator) Cancel(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := o.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrExecutionFinished, executionID, execution.Status)
	}

	err = o.executions.SetStatus(ctx, executionID, models.ExecutionStatusCancelled)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	cancel, ok := o.running[executionID]
	o.mu.Unlock()

	if ok {
		cancel(ErrExecutionCancelled)
	}

	o.appendLog(ctx, executionID, "", models.LogLevelInfo, "execution cancelled")
	o.countExecution(models.ExecutionStatusCancelled)
	o.publish(ctx, execution.WorkflowID, events.WorkflowExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionCancelledEvent, execution.WorkflowID),
		ExecutionID: executionID,
		Reason:      "cancelled by request",
	})

	o.logger.InfoContext(ctx, "execution cancelled", "execution_id", executionID)

	return o.executions.GetByID(ctx, executionID)
}

// Restart starts a new execution with the parameters of a finished one.
func (o *Orchestrator) Restart(ctx context.Context, executionID, userID string) (*models.WorkflowExecution, error) {
	previous, err := o.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if !previous.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrExecutionNotFinished, executionID, previous.Status)
	}

	definition, err := o.workflows.GetByID(ctx, previous.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !definition.Metadata.Restartable {
		return nil, fmt.Errorf("%w: %s", ErrNotRestartable, definition.ID)
	}

	if userID == "" {
		userID = previous.TriggeredBy
	}

	return o.Execute(ctx, ExecuteRequest{
		WorkflowID: previous.WorkflowID,
		UserID:     userID,
		TriggerID:  previous.TriggerID,
		Parameters: previous.Parameters,
	})
}

func (o *Orchestrator) Get(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return o.executions.GetByID(ctx, executionID)
}

func (o *Orchestrator) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return o.executions.ListByWorkflow(ctx, workflowID)
}

// Running reports how many executions are still walking their nodes.
func (o *Orchestrator) Running() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.running)
}

// Wait blocks until every started execution has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown waits for in-flight executions until ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) release(executionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cancel, ok := o.running[executionID]; ok {
		cancel(nil)
		delete(o.running, executionID)
	}
}

func (o *Orchestrator) appendLog(ctx context.Context, executionID, nodeID string, level models.LogLevel, message string) {
	err := o.executions.AppendLog(context.WithoutCancel(ctx), executionID, models.ExecutionLog{
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		Level:     level,
		Message:   message,
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to append execution log",
			"execution_id", executionID, "node_id", nodeID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(context.WithoutCancel(ctx), key, event)
	if err != nil {
		o.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (o *Orchestrator) countExecution(status models.ExecutionStatus) {
	if o.metrics != nil {
		o.metrics.Executions.WithLabelValues(string(status)).Inc()
	}
}

func (o *Orchestrator) recordError(node *models.WorkflowNode, exceptionType, message, executionID string) {
	if o.monitor == nil {
		return
	}

	o.monitor.Record(string(node.Type), exceptionType, message, map[string]any{
		"node_id":      node.ID,
		"execution_id": executionID,
	})
}

func executionAttributes(execution *models.WorkflowExecution) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	}
}
