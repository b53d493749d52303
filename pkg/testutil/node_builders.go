// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/google/uuid"
)

// Node creates a node of the given type with an empty config.
func Node(id string, nodeType models.NodeType, overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:     id,
		Type:   nodeType,
		Label:  id,
		Config: map[string]any{},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithTimeout sets the node timeout in seconds.
func WithTimeout(seconds int) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.TimeoutSeconds = seconds
	}
}

// Edge connects source to target without a label.
func Edge(source, target string) *models.WorkflowEdge {
	return &models.WorkflowEdge{ID: source + "->" + target, Source: source, Target: target}
}

// LabeledEdge connects source to target under a named channel.
func LabeledEdge(source, target, label string) *models.WorkflowEdge {
	edge := Edge(source, target)
	edge.Label = label

	return edge
}

// Definition wraps nodes and edges into a published single-version workflow.
func Definition(projectID string, nodes []*models.WorkflowNode, edges []*models.WorkflowEdge, overrides ...func(*models.WorkflowDefinition)) *models.WorkflowDefinition {
	now := time.Now().UTC()

	definition := &models.WorkflowDefinition{
		ID:        uuid.New().String(),
		Name:      "Test Workflow",
		ProjectID: projectID,
		OwnerID:   "test-user",
		Status:    models.WorkflowStatusPublished,
		Versions: []*models.WorkflowVersion{
			{
				Version:     1,
				Nodes:       nodes,
				Edges:       edges,
				Published:   true,
				CreatedAt:   now,
				PublishedAt: &now,
			},
		},
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(definition)
	}

	return definition
}

// LinearPipeline returns trigger A -> data-input B -> processing C -> output D.
func LinearPipeline() ([]*models.WorkflowNode, []*models.WorkflowEdge) {
	nodes := []*models.WorkflowNode{
		Node("A", models.NodeTypeTrigger),
		Node("B", models.NodeTypeDataInput),
		Node("C", models.NodeTypeProcessing),
		Node("D", models.NodeTypeOutput),
	}
	edges := []*models.WorkflowEdge{
		Edge("A", "B"),
		Edge("B", "C"),
		Edge("C", "D"),
	}

	return nodes, edges
}
