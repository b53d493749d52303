package output_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/nodes/output"
	"github.com/dukex/flowgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWithInputs() *models.ExecutionContext {
	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil)
	execCtx.SetNodeInputs("out", map[string]any{"from_proc": map[string]any{"total": 10.0}})

	return execCtx
}

func TestExecutor_Context(t *testing.T) {
	t.Parallel()

	node := testutil.Node("out", models.NodeTypeOutput)

	result, err := output.New(nodes.Dependencies{}).Execute(t.Context(), node, contextWithInputs())
	require.NoError(t, err)
	assert.Equal(t, "context", result.Data["output_type"])
	assert.Equal(t, map[string]any{"from_proc": map[string]any{"total": 10.0}}, result.Data["output"])
}

func TestExecutor_File(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "results")

	node := testutil.Node("out", models.NodeTypeOutput, testutil.WithConfig(map[string]any{
		"output_type": "file",
		"directory":   dir,
	}))

	result, err := output.New(nodes.Dependencies{}).Execute(t.Context(), node, contextWithInputs())
	require.NoError(t, err)
	require.True(t, result.Success, result.Errors)

	path := filepath.Join(dir, "exec-1-out.json")
	assert.Equal(t, path, result.Data["path"])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var document map[string]any
	require.NoError(t, json.Unmarshal(raw, &document))
	assert.Equal(t, "exec-1", document["execution_id"])
	assert.Equal(t, map[string]any{"from_proc": map[string]any{"total": 10.0}}, document["output"])
}

func TestExecutor_FileRejectsTraversal(t *testing.T) {
	t.Parallel()

	node := testutil.Node("out", models.NodeTypeOutput, testutil.WithConfig(map[string]any{
		"output_type": "file",
		"directory":   t.TempDir(),
		"filename":    "../escape.json",
	}))

	result, err := output.New(nodes.Dependencies{}).Execute(t.Context(), node, contextWithInputs())
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestExecutor_Webhook(t *testing.T) {
	t.Parallel()

	received := make(chan map[string]any, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	node := testutil.Node("out", models.NodeTypeOutput, testutil.WithConfig(map[string]any{
		"output_type": "webhook",
		"url":         server.URL,
	}))

	result, err := output.New(nodes.Dependencies{Logger: testutil.DiscardLogger()}).Execute(t.Context(), node, contextWithInputs())
	require.NoError(t, err)
	require.True(t, result.Success, result.Errors)
	assert.Equal(t, http.StatusAccepted, result.Data["status_code"])
	assert.Equal(t, map[string]any{"from_proc": map[string]any{"total": 10.0}}, <-received)
}

func TestExecutor_Validate(t *testing.T) {
	t.Parallel()

	executor := output.New(nodes.Dependencies{})

	assert.NoError(t, executor.Validate(testutil.Node("o", models.NodeTypeOutput)))
	assert.Error(t, executor.Validate(testutil.Node("o", models.NodeTypeOutput, testutil.WithConfig(map[string]any{"output_type": "file"}))))
	assert.Error(t, executor.Validate(testutil.Node("o", models.NodeTypeOutput, testutil.WithConfig(map[string]any{"output_type": "webhook"}))))
	assert.Error(t, executor.Validate(testutil.Node("o", models.NodeTypeOutput, testutil.WithConfig(map[string]any{"output_type": "ftp"}))))
}
