package worker

import (
	"context"

	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/processor"
	"basegraph.app/pulse/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, []queue.Malformed, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// EventHandler abstracts the event processor for testability.
type EventHandler interface {
	Handle(ctx context.Context, event model.RawEvent) (processor.Result, error)
}
