// Package processing provides the node executor that transforms data.
package processing

import (
	"context"
	"fmt"
	"maps"
	"net/http"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/template"
)

const (
	OperationMap         = "map"
	OperationHTTP        = "http"
	OperationPassthrough = "passthrough"
)

// Config is the processing node configuration.
type Config struct {
	Operation string            `json:"operation" validate:"required,oneof=map http passthrough"`
	Mappings  map[string]string `json:"mappings"  validate:"required_if=Operation map"`
	Endpoint  string            `json:"endpoint"  validate:"required_if=Operation http"`
	Headers   map[string]string `json:"headers"`
}

// Executor maps inputs through templates, posts them to an endpoint, or passes them through.
type Executor struct {
	deps nodes.Dependencies
}

func New(deps nodes.Dependencies) *Executor {
	return &Executor{deps: deps.WithDefaults()}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeProcessing
}

func (e *Executor) Name() string {
	return "Processing"
}

func (e *Executor) Description() string {
	return "Transforms the inputs with templates, posts them to an HTTP endpoint, or forwards them unchanged."
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []any{OperationMap, OperationHTTP, OperationPassthrough},
			},
			"mappings": map[string]any{
				"type":                 "object",
				"description":          "Output key to template",
				"additionalProperties": map[string]any{"type": "string"},
				"examples": []any{
					map[string]any{"total": "{{ .inputs.from_fetch.amount }}", "customer": "{{ upper .params.customer }}"},
				},
			},
			"endpoint": map[string]any{"type": "string"},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
		"required": []any{"operation"},
	}
}

func (e *Executor) Validate(node *models.WorkflowNode) error {
	var config Config

	return nodes.DecodeConfig(node, &config)
}

func (e *Executor) Execute(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	var config Config

	err := nodes.DecodeConfig(node, &config)
	if err != nil {
		return nil, err
	}

	inputs := execCtx.NodeInputs(node.ID)

	switch config.Operation {
	case OperationPassthrough:
		return models.Succeeded(maps.Clone(inputs)), nil
	case OperationMap:
		data := template.ContextData(execCtx, node.ID)
		output := make(map[string]any, len(config.Mappings))

		for key, tmpl := range config.Mappings {
			value, err := template.Render(tmpl, data)
			if err != nil {
				return models.Failed(fmt.Sprintf("mapping %q: %v", key, err)), nil
			}

			output[key] = value
		}

		return models.Succeeded(output), nil
	case OperationHTTP:
		endpoint, err := template.RenderString(config.Endpoint, template.ContextData(execCtx, node.ID))
		if err != nil {
			return models.Failed(err.Error()), nil
		}

		response, err := e.deps.SendJSON(ctx, string(models.NodeTypeProcessing), http.MethodPost, endpoint, config.Headers, inputs)
		if err != nil {
			return models.Failed(fmt.Sprintf("post %s: %v", endpoint, err)), nil
		}

		output := map[string]any{
			"status_code": response["status_code"],
			"response":    response["body"],
		}

		if decoded, ok := response["json"]; ok {
			output["response"] = decoded
		}

		return models.Succeeded(output), nil
	default:
		return nil, fmt.Errorf("unknown operation %q", config.Operation)
	}
}
