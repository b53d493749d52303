// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/persistence/file"
	"github.com/dukex/flowgraph/pkg/persistence/postgresql"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

// NewPersistence selects the persistence layer from the URL scheme:
// file://<dir> or postgres://...
//
// nolint:ireturn // the provider is chosen at runtime
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "file":
		root := strings.TrimPrefix(databaseURL, "file://")
		if root == "" {
			return nil, fmt.Errorf("%w: file persistence needs a directory", ErrUnsupportedProvider)
		}

		logger.InfoContext(ctx, "Using file persistence", "root", root)

		return file.NewPersistence(root), nil
	case "postgres":
		logger.InfoContext(ctx, "Using PostgreSQL persistence")

		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("%w: database url %q", ErrUnsupportedProvider, databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	switch scheme {
	case "file":
		return "file"
	case "postgres", "postgresql":
		return "postgres"
	default:
		return ""
	}
}
