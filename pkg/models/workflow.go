// Package models defines the workflow, execution and trigger domain models.
package models

import (
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"
	WorkflowStatusPublished WorkflowStatus = "published"
	WorkflowStatusArchived  WorkflowStatus = "archived"
)

// WorkflowMetadata carries execution settings shared by every version of a definition.
type WorkflowMetadata struct {
	TimeoutSeconds     int            `json:"timeout_seconds,omitempty"      validate:"gte=0"`
	NodeTimeoutSeconds int            `json:"node_timeout_seconds,omitempty" validate:"gte=0"`
	Tags               []string       `json:"tags,omitempty"`
	Restartable        bool           `json:"restartable"`
	CustomProperties   map[string]any `json:"custom_properties,omitempty"`
}

// WorkflowVersion is a snapshot of the graph. Once published its nodes and edges never change.
type WorkflowVersion struct {
	Version     int             `json:"version"`
	Nodes       []*WorkflowNode `json:"nodes"                  validate:"dive"`
	Edges       []*WorkflowEdge `json:"edges"                  validate:"dive"`
	Published   bool            `json:"published"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// WorkflowDefinition is a named, project-scoped workflow with its ordered versions.
type WorkflowDefinition struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"            validate:"required,min=3"`
	Description    string             `json:"description"`
	ProjectID      string             `json:"project_id"      validate:"required"`
	OwnerID        string             `json:"owner_id"`
	Status         WorkflowStatus     `json:"status"          validate:"required,oneof=draft published archived"`
	Versions       []*WorkflowVersion `json:"versions"`
	CurrentVersion int                `json:"current_version"`
	Metadata       WorkflowMetadata   `json:"metadata"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Version returns the version with the given number, or nil.
func (w *WorkflowDefinition) Version(number int) *WorkflowVersion {
	for _, version := range w.Versions {
		if version.Version == number {
			return version
		}
	}

	return nil
}

// Current returns the active version, or nil when the definition has none.
func (w *WorkflowDefinition) Current() *WorkflowVersion {
	return w.Version(w.CurrentVersion)
}

// LatestVersion returns the highest version number, 0 when there are no versions.
func (w *WorkflowDefinition) LatestVersion() int {
	latest := 0
	for _, version := range w.Versions {
		if version.Version > latest {
			latest = version.Version
		}
	}

	return latest
}
