package trigger_test

import (
	"testing"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/nodes/trigger"
	"github.com/dukex/flowgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	execCtx := models.NewExecutionContext("exec-1", "wf-1", map[string]any{"order_id": "o-1"})
	execCtx.UserID = "u-1"

	node := testutil.Node("start", models.NodeTypeTrigger)

	result, err := trigger.New().Execute(t.Context(), node, execCtx)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, true, result.Data["triggered"])
	assert.Equal(t, "MANUAL", result.Data["trigger_type"])
	assert.Equal(t, "u-1", result.Data["triggered_by"])
	assert.Equal(t, "o-1", result.Data["order_id"])
	assert.NotEmpty(t, result.Data["timestamp"])
}

func TestExecutor_TriggerTypeFromParameters(t *testing.T) {
	t.Parallel()

	execCtx := models.NewExecutionContext("exec-1", "wf-1", map[string]any{"trigger_type": "WEBHOOK"})
	node := testutil.Node("start", models.NodeTypeTrigger, testutil.WithConfig(map[string]any{"trigger_type": "SCHEDULED"}))

	result, err := trigger.New().Execute(t.Context(), node, execCtx)
	require.NoError(t, err)
	assert.Equal(t, "WEBHOOK", result.Data["trigger_type"])

	result, err = trigger.New().Execute(t.Context(), node, models.NewExecutionContext("e", "w", nil))
	require.NoError(t, err)
	assert.Equal(t, "SCHEDULED", result.Data["trigger_type"])
}
