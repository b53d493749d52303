package web

import (
	"github.com/dukex/flowgraph/pkg/events"
	"github.com/gofiber/fiber/v3"
)

// PublishEvent puts an application event on the bus for event triggers.
func (h *APIHandlers) PublishEvent(c fiber.Ctx) error {
	if h.publisher == nil {
		return problem(c, fiber.StatusServiceUnavailable, "event_bus_unavailable", "event bus is not configured")
	}

	var req PublishEventRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	evt := events.NewDomainEvent(req.Name, req.Source, req.Data)
	evt.ProjectID = req.ProjectID

	err = h.publisher.Publish(c.Context(), evt.Name, evt)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "failed to publish event", "event", evt.Name, "error", err)

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": evt.ID,
		"name":     evt.Name,
	})
}
