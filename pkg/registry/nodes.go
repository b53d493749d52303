package registry

import (
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/nodes/datainput"
	"github.com/dukex/flowgraph/pkg/nodes/decision"
	"github.com/dukex/flowgraph/pkg/nodes/output"
	"github.com/dukex/flowgraph/pkg/nodes/processing"
	"github.com/dukex/flowgraph/pkg/nodes/trigger"
	"github.com/dukex/flowgraph/pkg/protocol"
)

// RegisterDefaultNodes registers the built-in executors.
func (r *Registry) RegisterDefaultNodes(deps nodes.Dependencies) error {
	for _, executor := range []protocol.Executor{
		trigger.New(),
		datainput.New(deps),
		processing.New(deps),
		decision.New(),
		output.New(deps),
	} {
		err := r.Register(executor)
		if err != nil {
			return err
		}
	}

	return nil
}
