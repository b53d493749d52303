package web

import (
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/services"
	"github.com/dukex/flowgraph/pkg/workflow"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflows.List(c.Context(), services.ListWorkflowsRequest{
		ProjectID: c.Query("project_id"),
		Status:    c.Query("status"),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	definition, err := h.workflows.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req services.CreateWorkflowRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	definition, err := h.workflows.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(definition)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req services.UpdateWorkflowRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	definition, err := h.workflows.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflows.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	var req UserRequest

	err := h.bind(c, &req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	definition, err := h.workflows.Publish(c.Context(), c.Params("id"), req.UserID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) ArchiveWorkflow(c fiber.Ctx) error {
	definition, err := h.workflows.Archive(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

// ValidateWorkflow checks a graph without storing it.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	var req struct {
		Nodes []*models.WorkflowNode `json:"nodes"`
		Edges []*models.WorkflowEdge `json:"edges"`
	}

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.workflows.ValidateGraph(c.Context(), req.Nodes, req.Edges)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"valid": true})
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteWorkflowRequest

	err := h.bind(c, &req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	execution, err := h.executions.Execute(c.Context(), workflow.ExecuteRequest{
		WorkflowID: c.Params("id"),
		UserID:     req.UserID,
		Parameters: req.Parameters,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(accepted(execution))
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")

	_, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	executions, err := h.executions.ListByWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}
