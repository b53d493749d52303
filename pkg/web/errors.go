package web

import (
	"errors"

	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/registry"
	"github.com/dukex/flowgraph/pkg/services"
	"github.com/dukex/flowgraph/pkg/triggers"
	"github.com/dukex/flowgraph/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func problem(c fiber.Ctx, status int, problemType, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func internalError(c fiber.Ctx, err error) error {
	p := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(p)
}

// handleServiceError maps service, persistence and engine errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return problem(c, fiber.StatusBadRequest, "validation_error", err.Error())

	case errors.Is(err, triggers.ErrTriggerType):
		return problem(c, fiber.StatusBadRequest, "trigger_type_mismatch", err.Error())

	case services.IsConflictError(err):
		return problem(c, fiber.StatusConflict, "conflict", err.Error())

	case errors.Is(err, workflow.ErrWorkflowArchived),
		errors.Is(err, workflow.ErrNoCurrentVersion),
		errors.Is(err, workflow.ErrNotRestartable):
		return problem(c, fiber.StatusConflict, "workflow_not_executable", err.Error())

	case errors.Is(err, workflow.ErrExecutionFinished),
		errors.Is(err, workflow.ErrExecutionNotFinished),
		persistence.IsInvalidStatusTransition(err):
		return problem(c, fiber.StatusConflict, "execution_state_conflict", err.Error())

	case errors.Is(err, triggers.ErrTriggerDisabled):
		return problem(c, fiber.StatusConflict, "trigger_disabled", err.Error())

	case persistence.IsWorkflowNotFound(err):
		return problem(c, fiber.StatusNotFound, "workflow_not_found", "workflow not found")

	case persistence.IsExecutionNotFound(err):
		return problem(c, fiber.StatusNotFound, "execution_not_found", "execution not found")

	case persistence.IsTriggerNotFound(err):
		return problem(c, fiber.StatusNotFound, "trigger_not_found", "trigger not found")

	case errors.Is(err, registry.ErrExecutorNotFound):
		return problem(c, fiber.StatusNotFound, "executor_not_found", err.Error())

	default:
		return internalError(c, err)
	}
}
