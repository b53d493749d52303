//go:build integration

package locker_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/flowgraph/pkg/locker"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()

	ctx := t.Context()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedis_LockUnlock(t *testing.T) {
	redisURL := startRedis(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	l, err := locker.NewRedis(t.Context(), logger, redisURL)
	require.NoError(t, err)

	defer l.Close()

	unlock, err := l.Lock(t.Context(), "trigger-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "trigger-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(t.Context()))
	require.ErrorIs(t, unlock(t.Context()), locker.ErrLockNotHeld)

	again, err := l.Lock(t.Context(), "trigger-1")
	require.NoError(t, err)
	require.NoError(t, again(t.Context()))
}
