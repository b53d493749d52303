// Package manual fires MANUAL triggers on an explicit API call.
package manual

import (
	"context"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/triggers"
)

type Channel struct {
	dispatcher triggers.Firer
}

func NewChannel(dispatcher triggers.Firer) *Channel {
	return &Channel{dispatcher: dispatcher}
}

// Fire starts the workflow bound to a MANUAL trigger on behalf of userID.
func (c *Channel) Fire(ctx context.Context, triggerID, userID string, params map[string]any) (*models.WorkflowExecution, error) {
	return c.dispatcher.Fire(ctx, triggers.FireRequest{
		TriggerID:  triggerID,
		Type:       models.TriggerTypeManual,
		UserID:     userID,
		Parameters: params,
	})
}
