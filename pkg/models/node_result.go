package models

// Metadata keys produced by built-in executors.
const (
	MetadataConditionMet = "condition_met"
)

// NodeResult is what an executor reports after running a node.
type NodeResult struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Succeeded builds a successful result carrying data.
func Succeeded(data map[string]any) *NodeResult {
	return &NodeResult{
		Success:  true,
		Data:     data,
		Metadata: map[string]any{},
	}
}

// Failed builds a failed result with the given messages.
func Failed(messages ...string) *NodeResult {
	return &NodeResult{
		Success:  false,
		Errors:   messages,
		Metadata: map[string]any{},
	}
}

// WithWarning appends a warning and returns the result.
func (r *NodeResult) WithWarning(warning string) *NodeResult {
	r.Warnings = append(r.Warnings, warning)

	return r
}

// ConditionMet reads the decision signal. ok is false when the result carries none.
func (r *NodeResult) ConditionMet() (met bool, ok bool) {
	if r.Metadata == nil {
		return false, false
	}

	met, ok = r.Metadata[MetadataConditionMet].(bool)

	return met, ok
}
