package web

import "github.com/gofiber/fiber/v3"

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	execution, err := h.executions.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// RestartExecution starts a new execution of the workflow's current version
// with the parameters of a finished one.
func (h *APIHandlers) RestartExecution(c fiber.Ctx) error {
	var req UserRequest

	err := h.bind(c, &req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	execution, err := h.executions.Restart(c.Context(), c.Params("id"), req.UserID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(accepted(execution))
}
