package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dukex/flowgraph/pkg/cmd"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/services"
	"github.com/urfave/cli/v3"
)

var ErrInvalidWorkflows = errors.New("invalid workflows found")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate workflow graphs from JSON files or from the database",
		ArgsUsage: "[workflow.json ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Validate the current version of every stored workflow",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With("module", "flowgraph-api", "action", "validate")

			reg, err := cmd.NewRegistry(logger, nodes.Dependencies{Logger: logger})
			if err != nil {
				return err
			}

			definitions := make([]*models.WorkflowDefinition, 0)

			for _, path := range command.Args().Slice() {
				definition, err := readDefinition(path)
				if err != nil {
					return err
				}

				definitions = append(definitions, definition)
			}

			var service *services.Workflow

			if url := command.String("database-url"); url != "" {
				p, err := cmd.NewPersistence(ctx, logger, url)
				if err != nil {
					return err
				}

				defer func() {
					err := p.Close(ctx)
					if err != nil {
						logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
					}
				}()

				service = services.NewWorkflow(logger, p, reg, nil)

				stored, err := service.List(ctx, services.ListWorkflowsRequest{})
				if err != nil {
					return fmt.Errorf("failed to fetch workflows: %w", err)
				}

				definitions = append(definitions, stored...)
			} else {
				service = services.NewWorkflow(logger, nil, reg, nil)
			}

			invalid := validateWorkflows(ctx, os.Stdout, service, definitions)
			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d", ErrInvalidWorkflows, invalid, len(definitions))
			}

			return nil
		},
	}
}

func readDefinition(path string) (*models.WorkflowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var definition models.WorkflowDefinition

	err = json.Unmarshal(raw, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if definition.Name == "" {
		definition.Name = path
	}

	return &definition, nil
}

// validateWorkflows reports one line per workflow and returns how many failed.
func validateWorkflows(ctx context.Context, out io.Writer, service *services.Workflow, definitions []*models.WorkflowDefinition) int {
	invalid := 0

	for _, definition := range definitions {
		current := definition.Current()
		if current == nil {
			_, _ = fmt.Fprintf(out, "INVALID %s (%s): no current version\n", definition.Name, definition.ID)
			invalid++

			continue
		}

		err := service.ValidateGraph(ctx, current.Nodes, current.Edges)
		if err != nil {
			_, _ = fmt.Fprintf(out, "INVALID %s (%s) v%d: %v\n", definition.Name, definition.ID, current.Version, err)
			invalid++

			continue
		}

		_, _ = fmt.Fprintf(out, "VALID   %s (%s) v%d: %d nodes, %d edges\n",
			definition.Name, definition.ID, current.Version, len(current.Nodes), len(current.Edges))
	}

	return invalid
}
