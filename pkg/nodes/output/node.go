// Package output provides the node executor that emits workflow results.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/template"
)

const (
	TypeContext = "context"
	TypeFile    = "file"
	TypeWebhook = "webhook"
)

// Config is the output node configuration.
type Config struct {
	OutputType string            `json:"output_type" validate:"omitempty,oneof=context file webhook"`
	Directory  string            `json:"directory"   validate:"required_if=OutputType file"`
	Filename   string            `json:"filename"`
	URL        string            `json:"url"         validate:"required_if=OutputType webhook"`
	Headers    map[string]string `json:"headers"`
}

// Executor collects the inputs of the node and delivers them.
type Executor struct {
	deps nodes.Dependencies
}

func New(deps nodes.Dependencies) *Executor {
	return &Executor{deps: deps.WithDefaults()}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeOutput
}

func (e *Executor) Name() string {
	return "Output"
}

func (e *Executor) Description() string {
	return "Emits the node inputs as the workflow result, to a JSON file, or to a webhook."
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"output_type": map[string]any{
				"type":    "string",
				"enum":    []any{TypeContext, TypeFile, TypeWebhook},
				"default": TypeContext,
			},
			"directory": map[string]any{"type": "string"},
			"filename": map[string]any{
				"type":        "string",
				"description": "Templated file name, defaults to <execution id>-<node id>.json",
			},
			"url": map[string]any{"type": "string"},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
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

	payload := maps.Clone(execCtx.NodeInputs(node.ID))

	switch config.OutputType {
	case "", TypeContext:
		return models.Succeeded(map[string]any{
			"output_type": TypeContext,
			"output":      payload,
		}), nil
	case TypeFile:
		path, err := e.writeFile(config, node, execCtx, payload)
		if err != nil {
			return models.Failed(err.Error()), nil
		}

		return models.Succeeded(map[string]any{
			"output_type": TypeFile,
			"path":        path,
			"output":      payload,
		}), nil
	case TypeWebhook:
		url, err := template.RenderString(config.URL, template.ContextData(execCtx, node.ID))
		if err != nil {
			return models.Failed(err.Error()), nil
		}

		response, err := e.deps.SendJSON(ctx, string(models.NodeTypeOutput), http.MethodPost, url, config.Headers, payload)
		if err != nil {
			return models.Failed(fmt.Sprintf("deliver to %s: %v", url, err)), nil
		}

		return models.Succeeded(map[string]any{
			"output_type": TypeWebhook,
			"status_code": response["status_code"],
			"output":      payload,
		}), nil
	default:
		return nil, fmt.Errorf("unknown output type %q", config.OutputType)
	}
}

func (e *Executor) writeFile(config Config, node *models.WorkflowNode, execCtx *models.ExecutionContext, payload map[string]any) (string, error) {
	name := fmt.Sprintf("%s-%s.json", execCtx.ExecutionID, node.ID)

	if config.Filename != "" {
		rendered, err := template.RenderString(config.Filename, template.ContextData(execCtx, node.ID))
		if err != nil {
			return "", err
		}

		name = rendered
	}

	if filepath.Base(name) != name {
		return "", fmt.Errorf("invalid output filename %q", name)
	}

	err := os.MkdirAll(config.Directory, 0o750)
	if err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	document := map[string]any{
		"execution_id": execCtx.ExecutionID,
		"workflow_id":  execCtx.WorkflowID,
		"node_id":      node.ID,
		"written_at":   time.Now().UTC().Format(time.RFC3339),
		"output":       payload,
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode output: %w", err)
	}

	path := filepath.Join(config.Directory, name)

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	return path, nil
}
