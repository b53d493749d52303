// Package web provides the HTTP handlers and REST endpoints of the workflow engine.
package web

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/flowgraph/pkg/eventbus"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/monitor"
	"github.com/dukex/flowgraph/pkg/registry"
	"github.com/dukex/flowgraph/pkg/services"
	"github.com/dukex/flowgraph/pkg/triggers/manual"
	"github.com/dukex/flowgraph/pkg/triggers/webhook"
	"github.com/dukex/flowgraph/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Executions is the part of the orchestrator the API drives.
type Executions interface {
	Execute(ctx context.Context, req workflow.ExecuteRequest) (*models.WorkflowExecution, error)
	Cancel(ctx context.Context, executionID string) (*models.WorkflowExecution, error)
	Restart(ctx context.Context, executionID, userID string) (*models.WorkflowExecution, error)
	Get(ctx context.Context, executionID string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
}

// Dependencies are the collaborators behind the handlers. Publisher may be
// nil, in which case POST /events is rejected.
type Dependencies struct {
	Logger     *slog.Logger
	Workflows  *services.Workflow
	Triggers   *services.TriggerManager
	Executions Executions
	Manual     *manual.Channel
	Webhooks   *webhook.Processor
	Publisher  eventbus.EventPublisher
	Monitor    *monitor.ErrorMonitor
	Registry   *registry.Registry
}

type APIHandlers struct {
	logger     *slog.Logger
	workflows  *services.Workflow
	triggers   *services.TriggerManager
	executions Executions
	manual     *manual.Channel
	webhooks   *webhook.Processor
	publisher  eventbus.EventPublisher
	monitor    *monitor.ErrorMonitor
	registry   *registry.Registry
	validator  *validator.Validate
}

func NewAPIHandlers(deps Dependencies) *APIHandlers {
	return &APIHandlers{
		logger:     deps.Logger.With("module", "api"),
		workflows:  deps.Workflows,
		triggers:   deps.Triggers,
		executions: deps.Executions,
		manual:     deps.Manual,
		webhooks:   deps.Webhooks,
		publisher:  deps.Publisher,
		monitor:    deps.Monitor,
		registry:   deps.Registry,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, ok := h.workflows.HealthCheck(c.Context())

	status := "healthy"
	code := fiber.StatusOK

	if !ok {
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
		"checkers": fiber.Map{
			"persistence": fiber.Map{"healthy": ok, "message": message},
			"errors":      h.monitor.Health(),
		},
	})
}

// Ready is the readiness probe used by the healthcheck middleware.
func (h *APIHandlers) Ready(c fiber.Ctx) bool {
	_, ok := h.workflows.HealthCheck(c.Context())

	return ok
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(h.registry.NodeTypes())
}

// bind decodes the JSON body into out and validates its struct tags.
func (h *APIHandlers) bind(c fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}

	err := c.Bind().JSON(out)
	if err != nil {
		return err
	}

	return h.validator.Struct(out)
}

func queryLimit(c fiber.Ctx, fallback int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}

	if limit <= 0 {
		return fallback, nil
	}

	return limit, nil
}
