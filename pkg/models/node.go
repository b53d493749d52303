package models

// NodeType identifies the kind of step a node performs and selects its executor.
type NodeType string

const (
	NodeTypeTrigger    NodeType = "trigger"
	NodeTypeDataInput  NodeType = "data-input"
	NodeTypeProcessing NodeType = "processing"
	NodeTypeDecision   NodeType = "decision"
	NodeTypeOutput     NodeType = "output"
)

// Edge labels understood by decision branch pruning.
const (
	EdgeLabelTrue  = "true"
	EdgeLabelFalse = "false"
)

// Position is the node location on an editor canvas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// WorkflowNode represents a step instance within a workflow version.
type WorkflowNode struct {
	ID             string         `json:"id"                        validate:"required"`
	Type           NodeType       `json:"type"                      validate:"required"`
	Label          string         `json:"label"`
	Description    string         `json:"description,omitempty"`
	Config         map[string]any `json:"config"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty" validate:"gte=0"`
	Position       Position       `json:"position"`
}

// WorkflowEdge is a directed arc between two nodes. Label, when set, names the data channel.
type WorkflowEdge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"          validate:"required"`
	Target string `json:"target"          validate:"required"`
	Label  string `json:"label,omitempty"`
}

// InputKey returns the key under which the source output is handed to the target.
func (e *WorkflowEdge) InputKey() string {
	if e.Label != "" {
		return e.Label
	}

	return "from_" + e.Source
}
