package graph

import (
	"context"
	"fmt"

	"github.com/dukex/flowgraph/pkg/models"
)

// Sort orders nodes with Kahn's algorithm. Zero in-degree nodes are taken in
// insertion order. The input must already have passed Validate; a short
// result means validation was bypassed and Sort panics.
func Sort(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) []*models.WorkflowNode {
	byID := make(map[string]*models.WorkflowNode, len(nodes))
	inDegree := make(map[string]int, len(nodes))

	for _, node := range nodes {
		byID[node.ID] = node
		inDegree[node.ID] = 0
	}

	for _, edge := range edges {
		inDegree[edge.Target]++
	}

	queue := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	adjacency := Successors(edges)
	order := make([]*models.WorkflowNode, 0, len(nodes))

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		order = append(order, byID[current])

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(nodes) {
		panic(fmt.Sprintf("graph: topological sort produced %d of %d nodes", len(order), len(nodes)))
	}

	return order
}

// Plan validates the graph and returns its execution order.
func (v *Validator) Plan(ctx context.Context, nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) ([]*models.WorkflowNode, error) {
	err := v.Validate(ctx, nodes, edges)
	if err != nil {
		return nil, err
	}

	return Sort(nodes, edges), nil
}
