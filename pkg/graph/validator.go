package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowgraph/pkg/models"
)

type color int

const (
	white color = iota
	gray
	black
)

// Validator checks the structural correctness of a node/edge set.
type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		logger: logger.With("module", "graph_validator"),
	}
}

// Validate runs every rule in order and stops at the first violation.
func (v *Validator) Validate(ctx context.Context, nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) error {
	checks := []struct {
		rule  string
		check func() error
	}{
		{RuleNonEmpty, func() error { return checkNonEmpty(nodes) }},
		{RuleUniqueIDs, func() error { return checkUniqueIDs(nodes) }},
		{RuleTriggerCount, func() error { return checkTriggerCount(nodes) }},
		{RuleEdgeRefs, func() error { return checkEdgeReferences(nodes, edges) }},
		{RuleNoSelfLoop, func() error { return checkSelfLoops(edges) }},
		{RuleAcyclic, func() error { return checkAcyclic(nodes, edges) }},
	}

	for _, c := range checks {
		err := c.check()
		if err != nil {
			v.logger.WarnContext(ctx, "Graph check failed", "rule", c.rule, "error", err)

			return err
		}

		v.logger.DebugContext(ctx, "Graph check passed", "rule", c.rule)
	}

	return nil
}

func checkNonEmpty(nodes []*models.WorkflowNode) error {
	if len(nodes) == 0 {
		return newValidationError(RuleNonEmpty, "", "at least one node is required", ErrNoNodes)
	}

	return nil
}

func checkUniqueIDs(nodes []*models.WorkflowNode) error {
	seen := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		if _, ok := seen[node.ID]; ok {
			return newValidationError(RuleUniqueIDs, node.ID, "node id is used more than once", ErrDuplicateNode)
		}

		seen[node.ID] = struct{}{}
	}

	return nil
}

func checkTriggerCount(nodes []*models.WorkflowNode) error {
	count := 0
	for _, node := range nodes {
		if node.Type == models.NodeTypeTrigger {
			count++
		}
	}

	switch {
	case count == 0:
		return newValidationError(RuleTriggerCount, "", "no trigger node found, exactly one is required", ErrTriggerCount)
	case count > 1:
		return newValidationError(RuleTriggerCount, "",
			fmt.Sprintf("found %d trigger nodes, exactly one is required", count), ErrTriggerCount)
	}

	return nil
}

func checkEdgeReferences(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) error {
	ids := nodeIDs(nodes)

	for _, edge := range edges {
		if _, ok := ids[edge.Source]; !ok {
			return newValidationError(RuleEdgeRefs, edge.Source,
				fmt.Sprintf("edge source %q does not exist", edge.Source), ErrUnknownNode)
		}

		if _, ok := ids[edge.Target]; !ok {
			return newValidationError(RuleEdgeRefs, edge.Target,
				fmt.Sprintf("edge target %q does not exist", edge.Target), ErrUnknownNode)
		}
	}

	return nil
}

func checkSelfLoops(edges []*models.WorkflowEdge) error {
	for _, edge := range edges {
		if edge.Source == edge.Target {
			return newValidationError(RuleNoSelfLoop, edge.Source, "node points to itself", ErrSelfLoop)
		}
	}

	return nil
}

// checkAcyclic runs a three-color DFS; reaching a gray node closes a cycle.
func checkAcyclic(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) error {
	adjacency := Successors(edges)
	colors := make(map[string]color, len(nodes))

	var visit func(id string) string

	visit = func(id string) string {
		colors[id] = gray

		for _, next := range adjacency[id] {
			switch colors[next] {
			case gray:
				return next
			case white:
				if cycleAt := visit(next); cycleAt != "" {
					return cycleAt
				}
			case black:
			}
		}

		colors[id] = black

		return ""
	}

	for _, node := range nodes {
		if colors[node.ID] != white {
			continue
		}

		if cycleAt := visit(node.ID); cycleAt != "" {
			return newValidationError(RuleAcyclic, cycleAt, "cycle detected", ErrCycle)
		}
	}

	return nil
}

func nodeIDs(nodes []*models.WorkflowNode) map[string]struct{} {
	ids := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		ids[node.ID] = struct{}{}
	}

	return ids
}

// Successors maps each node id to its direct successors, in edge order.
func Successors(edges []*models.WorkflowEdge) map[string][]string {
	adjacency := make(map[string][]string)
	for _, edge := range edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	return adjacency
}

// Incoming maps each node id to the edges that end at it, in edge order.
func Incoming(edges []*models.WorkflowEdge) map[string][]*models.WorkflowEdge {
	incoming := make(map[string][]*models.WorkflowEdge)
	for _, edge := range edges {
		incoming[edge.Target] = append(incoming[edge.Target], edge)
	}

	return incoming
}
