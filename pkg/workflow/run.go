package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/flowgraph/pkg/events"
	"github.com/dukex/flowgraph/pkg/graph"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/otelhelper"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
)

func (o *Orchestrator) run(
	ctx context.Context,
	execution *models.WorkflowExecution,
	definition *models.WorkflowDefinition,
	version *models.WorkflowVersion,
	plan []*models.WorkflowNode,
) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.execute", executionAttributes(execution)...)
	defer span.End()

	logger := o.logger.With("workflow_id", definition.ID, "execution_id", execution.ID)
	started := time.Now()

	execCtx := models.NewExecutionContext(execution.ID, definition.ID, execution.Parameters)
	execCtx.Version = version.Version
	execCtx.UserID = execution.TriggeredBy
	execCtx.ProjectID = definition.ProjectID
	execCtx.TriggerID = execution.TriggerID

	walk := newBranches(version.Edges)

	for _, node := range plan {
		if ctx.Err() != nil {
			o.interrupted(ctx, execution, definition.Metadata, started)

			return
		}

		if !walk.reachable(node.ID) {
			walk.skip(node.ID)
			o.appendLog(ctx, execution.ID, node.ID, models.LogLevelInfo,
				"node skipped: no live incoming edge")
			logger.DebugContext(ctx, "node skipped", "node_id", node.ID)

			continue
		}

		inputs := walk.inputs(node.ID, execCtx)
		execCtx.SetNodeInputs(node.ID, inputs)

		result, err := o.runNode(ctx, execution, definition.Metadata, node, execCtx)
		if err != nil {
			if errors.Is(context.Cause(ctx), ErrExecutionCancelled) {
				logger.InfoContext(ctx, "execution stopped after cancellation", "node_id", node.ID)

				return
			}

			otelhelper.SetError(span, err)
			o.finishFailed(ctx, execution, node.ID, err.Error(), time.Since(started))

			return
		}

		if !result.Success {
			message := failureMessage(node, result)
			o.recordError(node, "node_failed", message, execution.ID)
			otelhelper.SetError(span, errors.New(message))
			o.finishFailed(ctx, execution, node.ID, message, time.Since(started))

			return
		}

		execCtx.SetNodeOutput(node.ID, result.Data)

		for _, warning := range result.Warnings {
			o.appendLog(ctx, execution.ID, node.ID, models.LogLevelWarn, warning)
		}

		message := "node completed"

		if met, ok := result.ConditionMet(); ok {
			walk.decide(node.ID, met)
			message = fmt.Sprintf("node completed: condition met = %t", met)
		}

		o.appendLog(ctx, execution.ID, node.ID, models.LogLevelInfo, message)
	}

	o.finishCompleted(ctx, execution, execCtx, walk.skipped(), time.Since(started))
}

func (o *Orchestrator) runNode(
	ctx context.Context,
	execution *models.WorkflowExecution,
	metadata models.WorkflowMetadata,
	node *models.WorkflowNode,
	execCtx *models.ExecutionContext,
) (*models.NodeResult, error) {
	attrs := append(executionAttributes(execution),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.node", attrs...)
	defer span.End()

	executor, err := o.registry.ValidateNode(node)
	if err != nil {
		err = fmt.Errorf("node %s: %w", node.ID, err)
		o.recordError(node, "validation_error", err.Error(), execution.ID)
		otelhelper.SetError(span, err)

		return nil, err
	}

	nodeCtx, cancel := ctx, context.CancelFunc(func() {})

	timeout := nodeTimeout(node, metadata)
	if timeout > 0 {
		nodeCtx, cancel = context.WithTimeoutCause(ctx, timeout, ErrNodeTimeout)
	}

	defer cancel()

	started := time.Now()
	result, err := invoke(nodeCtx, executor, node, execCtx)

	if o.metrics != nil {
		o.metrics.NodeDuration.WithLabelValues(string(node.Type)).Observe(time.Since(started).Seconds())
	}

	if err == nil && result == nil {
		err = errors.New("executor returned no result")
	}

	if err != nil {
		exceptionType := "executor_error"

		switch cause := context.Cause(nodeCtx); {
		case errors.Is(cause, ErrExecutionCancelled):
			return nil, cause
		case errors.Is(cause, ErrNodeTimeout):
			exceptionType = "timeout"
			err = fmt.Errorf("node %s timed out after %s", node.ID, timeout)
		case errors.Is(cause, ErrExecutionTimeout):
			exceptionType = "timeout"
			err = fmt.Errorf("execution timed out after %ds", metadata.TimeoutSeconds)
		default:
			err = fmt.Errorf("node %s: %w", node.ID, err)
		}

		o.recordError(node, exceptionType, err.Error(), execution.ID)
		otelhelper.SetError(span, err)

		return nil, err
	}

	return result, nil
}

// invoke runs the executor on its own goroutine so a deadline is enforced
// even when the executor ignores ctx.
func invoke(
	ctx context.Context,
	executor protocol.Executor,
	node *models.WorkflowNode,
	execCtx *models.ExecutionContext,
) (*models.NodeResult, error) {
	type outcome struct {
		result *models.NodeResult
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("executor panicked: %v", r)}
			}
		}()

		result, err := executor.Execute(ctx, node, execCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func nodeTimeout(node *models.WorkflowNode, metadata models.WorkflowMetadata) time.Duration {
	if node.TimeoutSeconds > 0 {
		return time.Duration(node.TimeoutSeconds) * time.Second
	}

	return time.Duration(metadata.NodeTimeoutSeconds) * time.Second
}

func failureMessage(node *models.WorkflowNode, result *models.NodeResult) string {
	if len(result.Errors) == 0 {
		return fmt.Sprintf("node %s failed", node.ID)
	}

	return fmt.Sprintf("node %s failed: %s", node.ID, strings.Join(result.Errors, "; "))
}

// interrupted handles a run context that ended between two nodes.
func (o *Orchestrator) interrupted(
	ctx context.Context,
	execution *models.WorkflowExecution,
	metadata models.WorkflowMetadata,
	started time.Time,
) {
	if errors.Is(context.Cause(ctx), ErrExecutionTimeout) {
		o.finishFailed(ctx, execution, "",
			fmt.Sprintf("execution timed out after %ds", metadata.TimeoutSeconds), time.Since(started))

		return
	}

	o.logger.InfoContext(ctx, "execution stopped after cancellation", "execution_id", execution.ID)
}

func (o *Orchestrator) finishFailed(
	ctx context.Context,
	execution *models.WorkflowExecution,
	nodeID, message string,
	duration time.Duration,
) {
	ctx = context.WithoutCancel(ctx)

	o.appendLog(ctx, execution.ID, nodeID, models.LogLevelError, message)

	err := o.executions.Fail(ctx, execution.ID, message)
	if err != nil {
		o.logStatusError(ctx, execution.ID, models.ExecutionStatusFailed, err)

		return
	}

	execution.Status = models.ExecutionStatusFailed
	execution.ErrorMessage = message

	o.countExecution(models.ExecutionStatusFailed)
	o.publish(ctx, execution.WorkflowID, events.WorkflowExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionFailedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      nodeID,
		Error:       message,
		Duration:    duration,
	})

	o.logger.WarnContext(ctx, "execution failed",
		"workflow_id", execution.WorkflowID, "execution_id", execution.ID, "node_id", nodeID, "error", message)
}

func (o *Orchestrator) finishCompleted(
	ctx context.Context,
	execution *models.WorkflowExecution,
	execCtx *models.ExecutionContext,
	skipped []string,
	duration time.Duration,
) {
	ctx = context.WithoutCancel(ctx)
	result := execCtx.Snapshot()

	if len(skipped) > 0 {
		result["skipped_nodes"] = skipped
	}

	err := o.executions.Complete(ctx, execution.ID, result)
	if err != nil {
		o.logStatusError(ctx, execution.ID, models.ExecutionStatusCompleted, err)

		return
	}

	o.appendLog(ctx, execution.ID, "", models.LogLevelInfo, "execution completed")
	o.countExecution(models.ExecutionStatusCompleted)
	o.publish(ctx, execution.WorkflowID, events.WorkflowExecutionCompleted{
		BaseEvent:    events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, execution.WorkflowID),
		ExecutionID:  execution.ID,
		Result:       result,
		SkippedNodes: skipped,
		Duration:     duration,
	})

	o.logger.InfoContext(ctx, "execution completed",
		"workflow_id", execution.WorkflowID, "execution_id", execution.ID, "duration", duration)
}

func (o *Orchestrator) logStatusError(ctx context.Context, executionID string, status models.ExecutionStatus, err error) {
	if persistence.IsInvalidStatusTransition(err) {
		o.logger.InfoContext(ctx, "execution already finished", "execution_id", executionID, "status", status)

		return
	}

	o.logger.ErrorContext(ctx, "failed to update execution status",
		"execution_id", executionID, "status", status, "error", err)
}

// branches tracks which edges still carry data after decisions and skips.
type branches struct {
	incoming  map[string][]*models.WorkflowEdge
	skips     map[string]bool
	order     []string
	decisions map[string]bool
}

func newBranches(edges []*models.WorkflowEdge) *branches {
	return &branches{
		incoming:  graph.Incoming(edges),
		skips:     make(map[string]bool),
		decisions: make(map[string]bool),
	}
}

// live reports whether edge carries data. Out of a decision node, edges
// labelled "false" follow an unmet condition and every other edge follows a
// met one.
func (b *branches) live(edge *models.WorkflowEdge) bool {
	if b.skips[edge.Source] {
		return false
	}

	met, decided := b.decisions[edge.Source]
	if !decided {
		return true
	}

	if strings.EqualFold(edge.Label, "false") {
		return !met
	}

	return met
}

// reachable is true for root nodes and for nodes with a live incoming edge.
func (b *branches) reachable(nodeID string) bool {
	edges := b.incoming[nodeID]
	if len(edges) == 0 {
		return true
	}

	for _, edge := range edges {
		if b.live(edge) {
			return true
		}
	}

	return false
}

func (b *branches) inputs(nodeID string, execCtx *models.ExecutionContext) map[string]any {
	inputs := make(map[string]any)

	for _, edge := range b.incoming[nodeID] {
		if !b.live(edge) {
			continue
		}

		if output, ok := execCtx.NodeOutput(edge.Source); ok {
			inputs[edge.InputKey()] = output
		}
	}

	return inputs
}

func (b *branches) skip(nodeID string) {
	b.skips[nodeID] = true
	b.order = append(b.order, nodeID)
}

func (b *branches) decide(nodeID string, met bool) {
	b.decisions[nodeID] = met
}

func (b *branches) skipped() []string {
	return b.order
}
