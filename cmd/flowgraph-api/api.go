package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/flowgraph/pkg/cmd"
	"github.com/dukex/flowgraph/pkg/eventbus"
	"github.com/dukex/flowgraph/pkg/monitor"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/otelhelper"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/services"
	"github.com/dukex/flowgraph/pkg/triggers"
	"github.com/dukex/flowgraph/pkg/triggers/event"
	"github.com/dukex/flowgraph/pkg/triggers/manual"
	"github.com/dukex/flowgraph/pkg/triggers/scheduled"
	"github.com/dukex/flowgraph/pkg/triggers/webhook"
	"github.com/dukex/flowgraph/pkg/web"
	"github.com/dukex/flowgraph/pkg/workflow"
	"github.com/gofiber/fiber/v3"
)

const shutdownTimeout = 30 * time.Second

// Config is the runtime configuration collected from flags.
type Config struct {
	Port             int
	DatabaseURL      string
	EventBus         string
	KafkaBrokers     string
	LockURL          string
	ScheduleInterval time.Duration
	Tracing          bool
	RetryPolicy      monitor.RetryPolicy
}

// API owns every long-lived component of the server.
type API struct {
	logger       *slog.Logger
	config       Config
	persistence  persistence.Persistence
	eventBus     *eventbus.WatermillEventBus
	orchestrator *workflow.Orchestrator
	scheduler    *scheduled.Scheduler
	app          *fiber.App
	closers      []func(ctx context.Context) error
}

// NewAPI wires persistence, the event bus, locks, the engine and the trigger
// channels. Close releases whatever was opened, also after a failed build.
func NewAPI(ctx context.Context, logger *slog.Logger, config Config) (*API, error) {
	api := &API{logger: logger, config: config}

	err := api.build(ctx)
	if err != nil {
		closeErr := api.Close(ctx)

		return nil, errors.Join(err, closeErr)
	}

	return api, nil
}

func (a *API) build(ctx context.Context) error {
	tracer, shutdownTracer, err := otelhelper.NewTracer(ctx, "flowgraph-api", a.config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	a.closers = append(a.closers, shutdownTracer)

	a.persistence, err = cmd.NewPersistence(ctx, a.logger, a.config.DatabaseURL)
	if err != nil {
		return err
	}

	a.closers = append(a.closers, a.persistence.Close)

	a.eventBus, err = cmd.NewEventBus(a.logger, a.config.EventBus, a.config.KafkaBrokers)
	if err != nil {
		return err
	}

	a.closers = append(a.closers, func(context.Context) error { return a.eventBus.Close() })

	lock, closeLock, err := cmd.NewLocker(ctx, a.logger, a.config.LockURL)
	if err != nil {
		return err
	}

	a.closers = append(a.closers, func(context.Context) error { return closeLock() })

	metrics := monitor.NewMetrics()
	errorMonitor := monitor.NewErrorMonitor(a.logger, metrics)

	reg, err := cmd.NewRegistry(a.logger, nodes.Dependencies{
		Logger:      a.logger,
		RetryPolicy: a.config.RetryPolicy,
		Monitor:     errorMonitor,
	})
	if err != nil {
		return err
	}

	a.orchestrator = workflow.NewOrchestrator(a.logger,
		a.persistence.WorkflowRepository(), a.persistence.ExecutionStore(), reg,
		workflow.WithMonitor(errorMonitor),
		workflow.WithMetrics(metrics),
		workflow.WithEventPublisher(a.eventBus),
		workflow.WithTracer(tracer),
	)

	manager := services.NewTriggerManager(a.logger, a.persistence, lock)
	dispatcher := triggers.NewDispatcher(a.logger, manager, a.orchestrator,
		triggers.WithEventPublisher(a.eventBus),
		triggers.WithMetrics(metrics),
	)

	a.scheduler = scheduled.NewScheduler(a.logger, manager, dispatcher, a.config.ScheduleInterval)

	err = event.NewListener(a.logger, manager, dispatcher).Register(a.eventBus)
	if err != nil {
		return fmt.Errorf("failed to register event trigger listener: %w", err)
	}

	handlers := web.NewAPIHandlers(web.Dependencies{
		Logger:     a.logger,
		Workflows:  services.NewWorkflow(a.logger, a.persistence, reg, a.eventBus),
		Triggers:   manager,
		Executions: a.orchestrator,
		Manual:     manual.NewChannel(dispatcher),
		Webhooks:   webhook.NewProcessor(a.logger, manager, dispatcher),
		Publisher:  a.eventBus,
		Monitor:    errorMonitor,
		Registry:   reg,
	})

	a.app = web.NewApp(handlers, metrics.Handler())

	return nil
}

func (a *API) App() *fiber.App {
	return a.app
}

// Run starts the trigger channels and serves HTTP until ctx is done, then
// drains in-flight executions.
func (a *API) Run(ctx context.Context) error {
	err := a.eventBus.Subscribe(ctx)
	if err != nil {
		return err
	}

	err = a.scheduler.Start(ctx)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- a.app.Listen(":"+strconv.Itoa(a.config.Port), fiber.ListenConfig{
			DisableStartupMessage: true,
		})
	}()

	a.logger.InfoContext(ctx, "Flowgraph API listening", "port", a.config.Port)

	select {
	case err = <-serveErr:
		if err != nil {
			a.logger.ErrorContext(ctx, "HTTP server stopped", "error", err)
		}
	case <-ctx.Done():
		a.logger.InfoContext(ctx, "Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return errors.Join(
		err,
		a.app.ShutdownWithContext(shutdownCtx),
		a.scheduler.Stop(shutdownCtx),
		a.orchestrator.Shutdown(shutdownCtx),
	)
}

// Close releases the resources opened by NewAPI in reverse order.
func (a *API) Close(ctx context.Context) error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		err := a.closers[i](ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to release resource", "error", err)
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}
