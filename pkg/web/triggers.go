package web

import (
	"strings"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/services"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) CreateTrigger(c fiber.Ctx) error {
	var req services.CreateTriggerRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	trigger, err := h.triggers.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(trigger)
}

func (h *APIHandlers) GetTrigger(c fiber.Ctx) error {
	trigger, err := h.triggers.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(trigger)
}

func (h *APIHandlers) UpdateTrigger(c fiber.Ctx) error {
	var req services.UpdateTriggerRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	trigger, err := h.triggers.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(trigger)
}

func (h *APIHandlers) DeleteTrigger(c fiber.Ctx) error {
	err := h.triggers.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableTrigger(c fiber.Ctx) error {
	trigger, err := h.triggers.Enable(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(trigger)
}

func (h *APIHandlers) DisableTrigger(c fiber.Ctx) error {
	trigger, err := h.triggers.Disable(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(trigger)
}

func (h *APIHandlers) GetTriggerStats(c fiber.Ctx) error {
	stats, err := h.triggers.Stats(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetProjectTriggers(c fiber.Ctx) error {
	triggers, err := h.triggers.ListByProject(c.Context(), c.Params("projectId"))

	return h.triggerList(c, triggers, err)
}

func (h *APIHandlers) GetWorkflowTriggers(c fiber.Ctx) error {
	triggers, err := h.triggers.ListByWorkflow(c.Context(), c.Params("workflowId"))

	return h.triggerList(c, triggers, err)
}

func (h *APIHandlers) GetTriggersByType(c fiber.Ctx) error {
	triggerType := models.TriggerType(strings.ToUpper(c.Params("type")))
	triggers, err := h.triggers.ListByType(c.Context(), triggerType)

	return h.triggerList(c, triggers, err)
}

func (h *APIHandlers) GetEnabledTriggers(c fiber.Ctx) error {
	triggers, err := h.triggers.ListEnabled(c.Context())

	return h.triggerList(c, triggers, err)
}

// FireTrigger runs a MANUAL trigger through the dispatcher.
func (h *APIHandlers) FireTrigger(c fiber.Ctx) error {
	var req FireTriggerRequest

	err := h.bind(c, &req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	execution, err := h.manual.Fire(c.Context(), c.Params("id"), req.UserID, req.Parameters)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(accepted(execution))
}

func (h *APIHandlers) triggerList(c fiber.Ctx, triggers []*models.WorkflowTrigger, err error) error {
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"triggers":    triggers,
		"total_count": len(triggers),
	})
}
