package cmd

import (
	"log/slog"

	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/registry"
)

// NewRegistry returns a registry holding the built-in node executors.
func NewRegistry(log *slog.Logger, deps nodes.Dependencies) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	err := reg.RegisterDefaultNodes(deps)
	if err != nil {
		return nil, err
	}

	return reg, nil
}
