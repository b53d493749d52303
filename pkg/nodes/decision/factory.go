// Package decision provides the branching node executor.
package decision

import (
	"github.com/dukex/flowgraph/pkg/models"
)

const (
	ConditionComparison = "comparison"
	ConditionThreshold  = "threshold"
	ConditionExpression = "expression"
	ConditionDataCheck  = "data-check"

	CheckExists    = "exists"
	CheckNotEmpty  = "not-empty"
	CheckIsSuccess = "is-success"
)

var operators = []string{"==", "!=", ">", ">=", "<", "<=", "contains", "starts-with", "ends-with"}

// Executor evaluates a condition and reports which branch is live.
type Executor struct{}

func New() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeDecision
}

func (e *Executor) Name() string {
	return "Decision"
}

func (e *Executor) Description() string {
	return "Evaluates a condition. Outgoing edges labelled true run when it holds, edges labelled false when it does not."
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition_type": map[string]any{
				"type":    "string",
				"enum":    []any{ConditionComparison, ConditionThreshold, ConditionExpression, ConditionDataCheck},
				"default": ConditionComparison,
			},
			"left_operand": map[string]any{
				"type":        "string",
				"description": "Parameter name or node output reference such as fetch.status",
			},
			"operator": map[string]any{
				"type": "string",
				"enum": toAny(operators),
			},
			"right_value": map[string]any{
				"description": "Literal compared against the left operand",
			},
			"input_key": map[string]any{"type": "string"},
			"threshold": map[string]any{"type": "number"},
			"comparison": map[string]any{
				"type":    "string",
				"enum":    []any{"==", "!=", ">", ">=", "<", "<="},
				"default": ">",
			},
			"expression": map[string]any{
				"type":        "string",
				"description": "Template rendering to true or false",
				"examples":    []any{"{{ gt .params.amount 100.0 }}"},
			},
			"check_type": map[string]any{
				"type":    "string",
				"enum":    []any{CheckExists, CheckNotEmpty, CheckIsSuccess},
				"default": CheckExists,
			},
		},
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}

	return out
}
