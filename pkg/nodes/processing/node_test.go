package processing_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/nodes/processing"
	"github.com/dukex/flowgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWithInputs() *models.ExecutionContext {
	execCtx := models.NewExecutionContext("e", "w", map[string]any{"customer": "acme"})
	execCtx.SetNodeOutput("fetch", map[string]any{"amount": 120.5})
	execCtx.SetNodeInputs("proc", map[string]any{"from_fetch": map[string]any{"amount": 120.5}})

	return execCtx
}

func TestExecutor_Map(t *testing.T) {
	t.Parallel()

	node := testutil.Node("proc", models.NodeTypeProcessing, testutil.WithConfig(map[string]any{
		"operation": "map",
		"mappings": map[string]any{
			"total":    "{{ .inputs.from_fetch.amount }}",
			"customer": "{{ upper .params.customer }}",
			"summary":  "{{ .params.customer }} owes {{ .nodes.fetch.amount }}",
		},
	}))

	result, err := processing.New(nodes.Dependencies{}).Execute(t.Context(), node, contextWithInputs())
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, 120.5, result.Data["total"])
	assert.Equal(t, "ACME", result.Data["customer"])
	assert.Equal(t, "acme owes 120.5", result.Data["summary"])
}

func TestExecutor_MapTemplateError(t *testing.T) {
	t.Parallel()

	node := testutil.Node("proc", models.NodeTypeProcessing, testutil.WithConfig(map[string]any{
		"operation": "map",
		"mappings":  map[string]any{"x": "{{ undefined_func }}"},
	}))

	result, err := processing.New(nodes.Dependencies{}).Execute(t.Context(), node, contextWithInputs())
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestExecutor_Passthrough(t *testing.T) {
	t.Parallel()

	node := testutil.Node("proc", models.NodeTypeProcessing, testutil.WithConfig(map[string]any{"operation": "passthrough"}))

	result, err := processing.New(nodes.Dependencies{}).Execute(t.Context(), node, contextWithInputs())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"from_fetch": map[string]any{"amount": 120.5}}, result.Data)
}

func TestExecutor_HTTP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"received": body["from_fetch"]})
	}))
	defer server.Close()

	node := testutil.Node("proc", models.NodeTypeProcessing, testutil.WithConfig(map[string]any{
		"operation": "http",
		"endpoint":  server.URL,
		"headers":   map[string]any{"X-Api-Key": "secret"},
	}))

	result, err := processing.New(nodes.Dependencies{Logger: testutil.DiscardLogger()}).Execute(t.Context(), node, contextWithInputs())
	require.NoError(t, err)
	require.True(t, result.Success, result.Errors)
	assert.Equal(t, 200, result.Data["status_code"])
	assert.Equal(t, map[string]any{"received": map[string]any{"amount": 120.5}}, result.Data["response"])
}

func TestExecutor_Validate(t *testing.T) {
	t.Parallel()

	executor := processing.New(nodes.Dependencies{})

	assert.NoError(t, executor.Validate(testutil.Node("p", models.NodeTypeProcessing, testutil.WithConfig(map[string]any{"operation": "passthrough"}))))
	assert.Error(t, executor.Validate(testutil.Node("p", models.NodeTypeProcessing, testutil.WithConfig(map[string]any{"operation": "map"}))))
	assert.Error(t, executor.Validate(testutil.Node("p", models.NodeTypeProcessing, testutil.WithConfig(map[string]any{"operation": "http"}))))
	assert.Error(t, executor.Validate(testutil.Node("p", models.NodeTypeProcessing, testutil.WithConfig(map[string]any{}))))
}
