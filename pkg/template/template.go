// Package template renders text/template expressions against execution data.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
)

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"rand": func(limit int) int {
		if limit <= 0 {
			return 0
		}

		num := make([]byte, 1)

		_, err := rand.Read(num)
		if err != nil {
			return 0
		}

		return int(num[0]) % limit
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	"json": func(v any) (string, error) {
		out, err := json.Marshal(v)

		return string(out), err
	},
}

// ContextData builds the template data of nodeID: params, nodes, inputs, execution and env.
func ContextData(executionCtx *models.ExecutionContext, nodeID string) map[string]any {
	data := executionCtx.TemplateData(nodeID)
	data["env"] = envVars()

	return data
}

// RenderWithContext renders input against the execution context seen by nodeID.
func RenderWithContext(input string, executionCtx *models.ExecutionContext, nodeID string) (any, error) {
	return Render(input, ContextData(executionCtx, nodeID))
}

// RenderString executes the template and returns the raw text.
func RenderString(templateStr string, data any) (string, error) {
	tmpl, err := template.New("flowgraph").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// Render executes the template and decodes the text as JSON, a number or a boolean when it parses as one.
func Render(templateStr string, data any) (any, error) {
	rendered, err := RenderString(templateStr, data)
	if err != nil {
		return nil, err
	}

	result := strings.TrimSpace(rendered)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderBool renders an expression that must evaluate to true or false.
func RenderBool(templateStr string, data any) (bool, error) {
	rendered, err := RenderString(templateStr, data)
	if err != nil {
		return false, err
	}

	b, err := strconv.ParseBool(strings.TrimSpace(rendered))
	if err != nil {
		return false, fmt.Errorf("expression '%s' did not evaluate to a boolean: %q", templateStr, rendered)
	}

	return b, nil
}

func envVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if ok {
			envMap[key] = value
		}
	}

	return envMap
}
