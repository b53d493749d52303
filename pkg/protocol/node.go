// Package protocol defines the contracts between the orchestrator and pluggable node executors.
package protocol

import (
	"context"

	"github.com/dukex/flowgraph/pkg/models"
)

// Executor runs the nodes of one type.
//
// A node fails when Execute returns an error or a result whose Success is false.
// Decision executors report the branch through the condition_met metadata key.
type Executor interface {
	// Type returns the node type served by this executor.
	Type() models.NodeType

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema of the node config.
	Schema() map[string]any

	// Validate checks the node config before execution.
	Validate(node *models.WorkflowNode) error

	// Execute runs the node. Inputs assembled from predecessors are available via execCtx.NodeInputs(node.ID).
	Execute(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeResult, error)
}

// NodeTypeInfo describes a registered executor.
type NodeTypeInfo struct {
	Type        models.NodeType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      map[string]any  `json:"schema"`
}
