package poller

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// FailureCounter tracks consecutive failed cycles across poller invocations.
type FailureCounter interface {
	Increment(ctx context.Context, stream string) (int64, error)
	Reset(ctx context.Context, stream string) error
}

type redisFailureCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisFailureCounter(client *redis.Client) FailureCounter {
	return &redisFailureCounter{client: client, prefix: "pulse:poll_failures:"}
}

func (c *redisFailureCounter) Increment(ctx context.Context, stream string) (int64, error) {
	n, err := c.client.Incr(ctx, c.prefix+stream).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing failure counter: %w", err)
	}
	return n, nil
}

func (c *redisFailureCounter) Reset(ctx context.Context, stream string) error {
	if err := c.client.Del(ctx, c.prefix+stream).Err(); err != nil {
		return fmt.Errorf("resetting failure counter: %w", err)
	}
	return nil
}
