// Package datainput provides the node executor that loads data into an execution.
package datainput

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
	SourceParameters = "parameters"
	SourceStatic     = "static"
	SourceHTTP       = "http"
)

// Config is the data-input node configuration.
type Config struct {
	Source  string            `json:"source"  validate:"required,oneof=parameters static http"`
	Keys    []string          `json:"keys"`
	Data    map[string]any    `json:"data"    validate:"required_if=Source static"`
	URL     string            `json:"url"     validate:"required_if=Source http"`
	Headers map[string]string `json:"headers"`
}

// Executor reads parameters, static data or a remote JSON document.
type Executor struct {
	deps nodes.Dependencies
}

func New(deps nodes.Dependencies) *Executor {
	return &Executor{deps: deps.WithDefaults()}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeDataInput
}

func (e *Executor) Name() string {
	return "Data Input"
}

func (e *Executor) Description() string {
	return "Loads data from the execution parameters, a static map or an HTTP GET."
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source": map[string]any{
				"type": "string",
				"enum": []any{SourceParameters, SourceStatic, SourceHTTP},
			},
			"keys": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Parameters to copy; all when empty",
			},
			"data": map[string]any{"type": "object"},
			"url":  map[string]any{"type": "string", "description": "Templated URL fetched with GET"},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
		"required": []any{"source"},
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

	switch config.Source {
	case SourceParameters:
		return fromParameters(config, execCtx), nil
	case SourceStatic:
		return models.Succeeded(maps.Clone(config.Data)), nil
	case SourceHTTP:
		return e.fromHTTP(ctx, config, node, execCtx)
	default:
		return nil, fmt.Errorf("unknown source %q", config.Source)
	}
}

func fromParameters(config Config, execCtx *models.ExecutionContext) *models.NodeResult {
	params := execCtx.Parameters()
	if len(config.Keys) == 0 {
		return models.Succeeded(params)
	}

	data := make(map[string]any, len(config.Keys))
	result := models.Succeeded(data)

	for _, key := range config.Keys {
		value, ok := params[key]
		if !ok {
			result.WithWarning(fmt.Sprintf("parameter %q not found", key))

			continue
		}

		data[key] = value
	}

	return result
}

func (e *Executor) fromHTTP(ctx context.Context, config Config, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	url, err := template.RenderString(config.URL, template.ContextData(execCtx, node.ID))
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	response, err := e.deps.SendJSON(ctx, string(models.NodeTypeDataInput), http.MethodGet, url, config.Headers, nil)
	if err != nil {
		return models.Failed(fmt.Sprintf("fetch %s: %v", url, err)), nil
	}

	data := map[string]any{
		"status_code": response["status_code"],
		"data":        response["body"],
	}

	if decoded, ok := response["json"]; ok {
		data["data"] = decoded
	}

	return models.Succeeded(data), nil
}
