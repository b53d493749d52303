package registry_test

import (
	"fmt"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/registry"
	"github.com/dukex/flowgraph/pkg/testutil"
)

func ExampleRegistry() {
	r := registry.NewRegistry(testutil.DiscardLogger())

	err := r.RegisterDefaultNodes(nodes.Dependencies{})
	if err != nil {
		panic(err)
	}

	node := testutil.Node("check", models.NodeTypeDecision, testutil.WithConfig(map[string]any{
		"condition_type": "threshold",
		"input_key":      "fetch.score",
		"threshold":      0.5,
	}))

	executor, err := r.ValidateNode(node)
	fmt.Println(executor.Name(), err)
	// Output: Decision <nil>
}
