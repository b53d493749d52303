package web

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp builds the fiber application with every route of the API. metrics
// is mounted at /metrics when set.
func NewApp(handlers *APIHandlers, metrics http.Handler) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: handlers.Ready,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowgraph API")
	})

	app.Get("/health", handlers.HealthCheck)
	app.Get("/node-types", handlers.GetNodeTypes)

	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/validate", handlers.ValidateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/publish", handlers.PublishWorkflow)
	w.Post("/:id/archive", handlers.ArchiveWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/cancel", handlers.CancelExecution)
	e.Post("/:id/restart", handlers.RestartExecution)

	t := app.Group("/triggers")
	t.Post("/", handlers.CreateTrigger)
	t.Get("/enabled", handlers.GetEnabledTriggers)
	t.Get("/project/:projectId", handlers.GetProjectTriggers)
	t.Get("/workflow/:workflowId", handlers.GetWorkflowTriggers)
	t.Get("/type/:type", handlers.GetTriggersByType)
	t.Get("/:id", handlers.GetTrigger)
	t.Put("/:id", handlers.UpdateTrigger)
	t.Delete("/:id", handlers.DeleteTrigger)
	t.Post("/:id/enable", handlers.EnableTrigger)
	t.Post("/:id/disable", handlers.DisableTrigger)
	t.Get("/:id/stats", handlers.GetTriggerStats)
	t.Post("/:id/fire", handlers.FireTrigger)

	hooks := app.Group("/webhooks/trigger")
	for _, path := range []string{"/:triggerId", "/:triggerId/*"} {
		hooks.Get(path, handlers.HandleWebhook)
		hooks.Post(path, handlers.HandleWebhook)
		hooks.Put(path, handlers.HandleWebhook)
		hooks.Delete(path, handlers.HandleWebhook)
	}

	app.Post("/events", handlers.PublishEvent)

	errs := app.Group("/errors")
	errs.Get("/stats", handlers.GetAllErrorStats)
	errs.Delete("/stats", handlers.ClearErrorStats)
	errs.Get("/stats/:taskType", handlers.GetTaskErrorStats)
	errs.Get("/summary", handlers.GetErrorSummary)
	errs.Get("/health", handlers.GetErrorHealth)
	errs.Get("/", handlers.GetRecentErrors)
	errs.Get("/:taskType", handlers.GetTaskErrors)

	return app
}
