// Package graph validates workflow graphs and orders their nodes for execution.
package graph

import (
	"errors"
	"fmt"
)

// Validation rules, in the order they are checked.
const (
	RuleNonEmpty     = "non_empty"
	RuleUniqueIDs    = "unique_node_ids"
	RuleTriggerCount = "trigger_count"
	RuleEdgeRefs     = "edge_references"
	RuleNoSelfLoop   = "no_self_loop"
	RuleAcyclic      = "acyclic"
)

var (
	ErrNoNodes       = errors.New("workflow has no nodes")
	ErrTriggerCount  = errors.New("workflow must have exactly one trigger node")
	ErrUnknownNode   = errors.New("edge references unknown node")
	ErrSelfLoop      = errors.New("edge connects a node to itself")
	ErrCycle         = errors.New("workflow graph contains a cycle")
	ErrDuplicateNode = errors.New("duplicate node id")
)

// ValidationError names the rule a graph violated.
type ValidationError struct {
	Rule    string
	NodeID  string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("graph validation failed [%s] at node %s: %s", e.Rule, e.NodeID, e.Message)
	}

	return fmt.Sprintf("graph validation failed [%s]: %s", e.Rule, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether err came from graph validation.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

func newValidationError(rule, nodeID, message string, err error) *ValidationError {
	return &ValidationError{
		Rule:    rule,
		NodeID:  nodeID,
		Message: message,
		Err:     err,
	}
}
