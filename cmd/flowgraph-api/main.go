// Package main provides the Flowgraph API server.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/flowgraph/pkg/log"
	"github.com/dukex/flowgraph/pkg/monitor"
	"github.com/dukex/flowgraph/pkg/triggers/scheduled"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

var errMissingDatabaseURL = errors.New("database-url is required (flag --database-url or DATABASE_URL)")

func main() {
	err := newCommand().Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("api").Error("flowgraph-api failed", "error", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	defaults := monitor.DefaultRetryPolicy()

	return &cli.Command{
		Name:                  "flowgraph-api",
		Usage:                 "Define, trigger and run workflow graphs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence (file://<dir> or postgres://...)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "lock-url",
				Usage:   "Redis URL for trigger locks shared across instances; in-process locks when empty",
				Sources: cli.EnvVars("LOCK_URL"),
			},
			&cli.DurationFlag{
				Name:    "schedule-interval",
				Usage:   "How often scheduled triggers are evaluated",
				Value:   scheduled.DefaultInterval,
				Sources: cli.EnvVars("SCHEDULE_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.IntFlag{
				Name:    "retry-max-attempts",
				Usage:   "Attempts for retried node calls",
				Value:   defaults.MaxAttempts,
				Sources: cli.EnvVars("RETRY_MAX_ATTEMPTS"),
			},
			&cli.DurationFlag{
				Name:    "retry-initial-delay",
				Usage:   "Delay after the first failed attempt",
				Value:   defaults.InitialDelay,
				Sources: cli.EnvVars("RETRY_INITIAL_DELAY"),
			},
			&cli.FloatFlag{
				Name:    "retry-multiplier",
				Usage:   "Backoff multiplier for the exponential strategy",
				Value:   defaults.Multiplier,
				Sources: cli.EnvVars("RETRY_MULTIPLIER"),
			},
			&cli.DurationFlag{
				Name:    "retry-max-delay",
				Usage:   "Upper bound of the delay between attempts",
				Value:   defaults.MaxDelay,
				Sources: cli.EnvVars("RETRY_MAX_DELAY"),
			},
			&cli.StringFlag{
				Name:    "retry-strategy",
				Usage:   "Backoff strategy (exponential, linear, fixed)",
				Value:   string(defaults.Strategy),
				Sources: cli.EnvVars("RETRY_STRATEGY"),
			},
		},
		Commands: []*cli.Command{
			NewValidateCommand(),
		},
		Action: serve,
	}
}

func serve(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")

	config, err := configFromCommand(command)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Initializing Flowgraph API")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := NewAPI(ctx, logger, config)
	if err != nil {
		return err
	}

	defer func() {
		err := api.Close(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close resources", "error", err)
		}
	}()

	return api.Run(ctx)
}

func configFromCommand(command *cli.Command) (Config, error) {
	if command.String("database-url") == "" {
		return Config{}, errMissingDatabaseURL
	}

	strategy, err := monitor.ParseRetryStrategy(command.String("retry-strategy"))
	if err != nil {
		return Config{}, err
	}

	interval := command.Duration("schedule-interval")
	if interval <= 0 {
		interval = scheduled.DefaultInterval
	}

	return Config{
		Port:             command.Int("port"),
		DatabaseURL:      command.String("database-url"),
		EventBus:         command.String("event-bus"),
		KafkaBrokers:     command.String("kafka-brokers"),
		LockURL:          command.String("lock-url"),
		ScheduleInterval: interval,
		Tracing:          command.Bool("tracing"),
		RetryPolicy: monitor.RetryPolicy{
			MaxAttempts:  command.Int("retry-max-attempts"),
			InitialDelay: command.Duration("retry-initial-delay"),
			Multiplier:   command.Float("retry-multiplier"),
			MaxDelay:     command.Duration("retry-max-delay"),
			Strategy:     strategy,
		},
	}, nil
}

