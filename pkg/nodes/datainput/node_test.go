package datainput_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/monitor"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/nodes/datainput"
	"github.com/dukex/flowgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() monitor.RetryPolicy {
	return monitor.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond, Strategy: monitor.RetryFixed}
}

func TestExecutor_Parameters(t *testing.T) {
	t.Parallel()

	execCtx := models.NewExecutionContext("e", "w", map[string]any{"a": 1, "b": 2})
	executor := datainput.New(nodes.Dependencies{})

	all := testutil.Node("in", models.NodeTypeDataInput, testutil.WithConfig(map[string]any{"source": "parameters"}))
	result, err := executor.Execute(t.Context(), all, execCtx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, result.Data)

	some := testutil.Node("in", models.NodeTypeDataInput, testutil.WithConfig(map[string]any{
		"source": "parameters",
		"keys":   []any{"a", "missing"},
	}))
	result, err = executor.Execute(t.Context(), some, execCtx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, map[string]any{"a": 1}, result.Data)
	assert.Len(t, result.Warnings, 1)
}

func TestExecutor_Static(t *testing.T) {
	t.Parallel()

	node := testutil.Node("in", models.NodeTypeDataInput, testutil.WithConfig(map[string]any{
		"source": "static",
		"data":   map[string]any{"region": "eu"},
	}))

	result, err := datainput.New(nodes.Dependencies{}).Execute(t.Context(), node, models.NewExecutionContext("e", "w", nil))
	require.NoError(t, err)
	assert.Equal(t, "eu", result.Data["region"])
}

func TestExecutor_HTTPRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		assert.Equal(t, "/customers/acme", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "Acme"}`))
	}))
	defer server.Close()

	logger := testutil.DiscardLogger()
	errorMonitor := monitor.NewErrorMonitor(logger, nil)

	node := testutil.Node("in", models.NodeTypeDataInput, testutil.WithConfig(map[string]any{
		"source": "http",
		"url":    server.URL + "/customers/{{ .params.customer }}",
	}))

	executor := datainput.New(nodes.Dependencies{Logger: logger, RetryPolicy: fastRetry(), Monitor: errorMonitor})

	result, err := executor.Execute(t.Context(), node, models.NewExecutionContext("e", "w", map[string]any{"customer": "acme"}))
	require.NoError(t, err)
	require.True(t, result.Success, result.Errors)
	assert.Equal(t, map[string]any{"name": "Acme"}, result.Data["data"])
	assert.Equal(t, int32(3), calls.Load())

	stats, ok := errorMonitor.Stats("data-input")
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.TotalErrors)
}

func TestExecutor_HTTPClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	node := testutil.Node("in", models.NodeTypeDataInput, testutil.WithConfig(map[string]any{
		"source": "http",
		"url":    server.URL,
	}))

	executor := datainput.New(nodes.Dependencies{Logger: testutil.DiscardLogger(), RetryPolicy: fastRetry()})

	result, err := executor.Execute(t.Context(), node, models.NewExecutionContext("e", "w", nil))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_Validate(t *testing.T) {
	t.Parallel()

	executor := datainput.New(nodes.Dependencies{})

	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{name: "parameters", config: map[string]any{"source": "parameters"}},
		{name: "missing source", config: map[string]any{}, wantErr: true},
		{name: "unknown source", config: map[string]any{"source": "ftp"}, wantErr: true},
		{name: "static without data", config: map[string]any{"source": "static"}, wantErr: true},
		{name: "http without url", config: map[string]any{"source": "http"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := executor.Validate(testutil.Node("in", models.NodeTypeDataInput, testutil.WithConfig(tt.config)))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
