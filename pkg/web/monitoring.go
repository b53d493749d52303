package web

import (
	"github.com/gofiber/fiber/v3"
)

const (
	defaultTaskErrorLimit = 50
	defaultErrorLimit     = 100
)

func (h *APIHandlers) GetTaskErrorStats(c fiber.Ctx) error {
	taskType := c.Params("taskType")

	stats, ok := h.monitor.Stats(taskType)
	if !ok {
		return problem(c, fiber.StatusNotFound, "task_type_not_found", "no errors recorded for task type "+taskType)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetAllErrorStats(c fiber.Ctx) error {
	return c.JSON(h.monitor.AllStats())
}

func (h *APIHandlers) GetTaskErrors(c fiber.Ctx) error {
	limit, err := queryLimit(c, defaultTaskErrorLimit)
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	taskType := c.Params("taskType")

	return c.JSON(fiber.Map{
		"task_type": taskType,
		"errors":    h.monitor.RecentErrors(taskType, limit),
	})
}

func (h *APIHandlers) GetRecentErrors(c fiber.Ctx) error {
	limit, err := queryLimit(c, defaultErrorLimit)
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	return c.JSON(fiber.Map{"errors": h.monitor.AllRecentErrors(limit)})
}

func (h *APIHandlers) GetErrorSummary(c fiber.Ctx) error {
	return c.JSON(h.monitor.Summary())
}

func (h *APIHandlers) ClearErrorStats(c fiber.Ctx) error {
	h.monitor.Clear()

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetErrorHealth(c fiber.Ctx) error {
	return c.JSON(h.monitor.Health())
}
