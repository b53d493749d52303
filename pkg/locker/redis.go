package locker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 50 * time.Millisecond
	redisKeyPrefix   = "flowgraph:lock:"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared across processes through SET NX with a TTL.
type Redis struct {
	client redis.UniversalClient
	logger *slog.Logger
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis connects to the redis server described by a redis:// URL.
func NewRedis(ctx context.Context, logger *slog.Logger, redisURL string) (*Redis, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewRedisWithClient(client, logger), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.UniversalClient, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		logger: logger.With("module", "redis_locker"),
		ttl:    defaultLockTTL,
		retry:  defaultLockRetry,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		acquired, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
		}

		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	return func(ctx context.Context) error {
		released, err := unlockScript.Run(ctx, r.client, []string{redisKey}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release lock %q: %w", key, err)
		}

		if released == 0 {
			r.logger.WarnContext(ctx, "lock expired before release", "key", key)

			return ErrLockNotHeld
		}

		return nil
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
