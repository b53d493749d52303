// Package trigger provides the entry node executor of a workflow.
package trigger

import (
	"context"
	"maps"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
)

// Executor emits the execution parameters marked as triggered.
type Executor struct {
	now func() time.Time
}

func New() *Executor {
	return &Executor{now: func() time.Time { return time.Now().UTC() }}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeTrigger
}

func (e *Executor) Name() string {
	return "Trigger"
}

func (e *Executor) Description() string {
	return "Entry point of a workflow. Exposes the execution parameters to downstream nodes."
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"trigger_type": map[string]any{
				"type": "string",
				"enum": []any{"MANUAL", "SCHEDULED", "WEBHOOK", "EVENT"},
			},
		},
	}
}

func (e *Executor) Validate(_ *models.WorkflowNode) error {
	return nil
}

func (e *Executor) Execute(_ context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	params := execCtx.Parameters()

	triggerType, _ := params["trigger_type"].(string)
	if triggerType == "" {
		triggerType, _ = node.Config["trigger_type"].(string)
	}

	if triggerType == "" {
		triggerType = string(models.TriggerTypeManual)
	}

	data := make(map[string]any, len(params)+4)
	maps.Copy(data, params)
	data["triggered"] = true
	data["trigger_type"] = triggerType
	data["triggered_by"] = execCtx.UserID
	data["timestamp"] = e.now().Format(time.RFC3339)

	return models.Succeeded(data), nil
}
