package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/internal/model"
)

// enqueueChunk bounds the number of XADDs sent in one pipeline round trip.
const enqueueChunk = 100

type Producer interface {
	// EnqueueAll appends events to the stream in the given order.
	// It returns only after every event was accepted, or the first error.
	EnqueueAll(ctx context.Context, events []model.RawEvent, traceID string) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) EnqueueAll(ctx context.Context, events []model.RawEvent, traceID string) error {
	for start := 0; start < len(events); start += enqueueChunk {
		end := min(start+enqueueChunk, len(events))
		chunk := events[start:end]

		cmds, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, event := range chunk {
				values, err := EncodeEvent(event, traceID)
				if err != nil {
					return err
				}
				pipe.XAdd(ctx, &redis.XAddArgs{
					Stream: p.stream,
					Values: values,
				})
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("enqueue events (stream=%s): %w", p.stream, err)
		}
		for _, cmd := range cmds {
			if cmd.Err() != nil {
				return fmt.Errorf("enqueue events (stream=%s): %w", p.stream, cmd.Err())
			}
		}

		p.logger.InfoContext(ctx, "enqueued events", "count", len(chunk), "stream", p.stream)
	}
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
