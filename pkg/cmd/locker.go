package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowgraph/pkg/locker"
)

// NewLocker returns in-process locks for an empty URL and redis locks for a
// redis:// or rediss:// URL. The returned close function releases the client.
//
// nolint:ireturn // the backend is chosen at runtime
func NewLocker(ctx context.Context, logger *slog.Logger, lockURL string) (locker.Locker, func() error, error) {
	switch {
	case lockURL == "":
		return locker.NewLocal(), func() error { return nil }, nil
	case strings.HasPrefix(lockURL, "redis://"), strings.HasPrefix(lockURL, "rediss://"):
		redisLocker, err := locker.NewRedis(ctx, logger, lockURL)
		if err != nil {
			return nil, nil, err
		}

		return redisLocker, redisLocker.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: lock url %q", ErrUnsupportedProvider, lockURL)
	}
}
