package models

import (
	"maps"
	"sync"
)

// ExecutionContext is the mutable per-run store shared by the nodes of one execution.
type ExecutionContext struct {
	ExecutionID string
	WorkflowID  string
	Version     int
	UserID      string
	ProjectID   string
	TriggerID   string

	mu          sync.RWMutex
	parameters  map[string]any
	nodeOutputs map[string]map[string]any
	nodeInputs  map[string]map[string]any
}

// NewExecutionContext creates a context seeded with the execution parameters.
func NewExecutionContext(executionID, workflowID string, parameters map[string]any) *ExecutionContext {
	params := make(map[string]any, len(parameters))
	maps.Copy(params, parameters)

	return &ExecutionContext{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		parameters:  params,
		nodeOutputs: make(map[string]map[string]any),
		nodeInputs:  make(map[string]map[string]any),
	}
}

// Parameters returns a copy of the execution parameters.
func (c *ExecutionContext) Parameters() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.parameters)
}

// Parameter returns a single execution parameter.
func (c *ExecutionContext) Parameter(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.parameters[key]

	return value, ok
}

// SetNodeOutput stores the output of a successfully executed node.
func (c *ExecutionContext) SetNodeOutput(nodeID string, output map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodeOutputs[nodeID] = output
}

// NodeOutput returns the recorded output of a node.
func (c *ExecutionContext) NodeOutput(nodeID string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	output, ok := c.nodeOutputs[nodeID]

	return output, ok
}

// NodeOutputs returns a shallow copy of every recorded node output.
func (c *ExecutionContext) NodeOutputs() map[string]map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.nodeOutputs)
}

// SetNodeInputs records the inputs assembled for a node before it runs.
func (c *ExecutionContext) SetNodeInputs(nodeID string, inputs map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodeInputs[nodeID] = inputs
}

// NodeInputs returns the inputs assembled for a node.
func (c *ExecutionContext) NodeInputs(nodeID string) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inputs, ok := c.nodeInputs[nodeID]
	if !ok {
		return map[string]any{}
	}

	return inputs
}

// Snapshot returns the data persisted as the execution result.
func (c *ExecutionContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	outputs := make(map[string]any, len(c.nodeOutputs))
	for nodeID, output := range c.nodeOutputs {
		outputs[nodeID] = output
	}

	return map[string]any{
		"parameters":   maps.Clone(c.parameters),
		"node_outputs": outputs,
	}
}

// TemplateData exposes the context to text templates.
func (c *ExecutionContext) TemplateData(nodeID string) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	outputs := make(map[string]any, len(c.nodeOutputs))
	for id, output := range c.nodeOutputs {
		outputs[id] = output
	}

	return map[string]any{
		"params": maps.Clone(c.parameters),
		"nodes":  outputs,
		"inputs": c.nodeInputs[nodeID],
		"execution": map[string]any{
			"id":          c.ExecutionID,
			"workflow_id": c.WorkflowID,
			"user_id":     c.UserID,
			"project_id":  c.ProjectID,
		},
	}
}
