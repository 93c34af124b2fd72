package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"basegraph.app/pulse/common/id"
	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/internal/metrics"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/processor"
	"basegraph.app/pulse/internal/queue"
	"basegraph.app/pulse/internal/store"
)

const maxErrorLen = 1024

type Config struct {
	Concurrency  int
	MaxAttempts  int
	StoreTimeout time.Duration
}

type Worker struct {
	consumer    Consumer
	handler     EventHandler
	deadLetters store.DeadLetterStore
	cfg         Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
}

func New(consumer Consumer, handler EventHandler, deadLetters store.DeadLetterStore, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Worker{
		consumer:    consumer,
		handler:     handler,
		deadLetters: deadLetters,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

// Run reads and processes messages on cfg.Concurrency goroutines until ctx is
// cancelled or Stop is called.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pulse.worker",
	})

	slog.InfoContext(ctx, "worker started", "concurrency", w.cfg.Concurrency)

	var wg sync.WaitGroup
	for range w.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	slog.InfoContext(ctx, "worker stopped")
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
			if err := w.processOneBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				select {
				case <-ctx.Done():
					return
				case <-w.stopCh:
					return
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, malformed, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, bad := range malformed {
		w.HandleMalformed(ctx, bad)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			w.HandleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"event_id", msg.EventID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage handles one delivery and acknowledges it once the event is durably recorded.
// On error the message is left unacknowledged. Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(msg.ID),
		EventID:   logger.Ptr(msg.EventID),
		EventType: logger.Ptr(msg.EventType),
	})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.handle_message",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(
		logger.AttrMessageID.String(msg.ID),
		logger.AttrEventID.String(msg.EventID),
		logger.AttrEventType.String(msg.EventType),
		logger.AttrAttempt.Int(msg.Attempt),
	)

	slog.DebugContext(ctx, "processing message", "attempt", msg.Attempt)

	result, err := w.handle(ctx, msg.Event)
	if err != nil {
		sc.Fail(err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The event is stored; a redelivery will be a duplicate.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "message processed", "result", result, "attempt", msg.Attempt)
	return nil
}

func (w *Worker) handle(ctx context.Context, event model.RawEvent) (processor.Result, error) {
	if w.cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.StoreTimeout)
		defer cancel()
	}
	return w.handler.Handle(ctx, event)
}

// HandleFailedMessage requeues msg, or dead-letters it when the event is invalid
// or its attempts are used up.
func (w *Worker) HandleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(msg.ID),
		EventID:   logger.Ptr(msg.EventID),
	})

	if errors.Is(err, processor.ErrInvalidEvent) {
		w.deadLetter(ctx, msg, "invalid", err)
		return
	}

	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"error", err,
			"attempts", msg.Attempt)
		w.deadLetter(ctx, msg, "max_attempts", err)
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"error", err,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, logger.Truncate(err.Error(), maxErrorLen)); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
		return
	}
	metrics.MessagesRequeued.Inc()
}

// HandleMalformed dead-letters an entry that never parsed; retrying it cannot succeed.
func (w *Worker) HandleMalformed(ctx context.Context, bad queue.Malformed) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(bad.Raw.ID),
	})
	w.deadLetter(ctx, queue.Message{ID: bad.Raw.ID, Raw: bad.Raw, Attempt: 1}, "malformed", bad.Err)
}

func (w *Worker) deadLetter(ctx context.Context, msg queue.Message, reason string, cause error) {
	errMsg := logger.Truncate(cause.Error(), maxErrorLen)
	if err := w.consumer.SendDLQ(ctx, msg, errMsg); err != nil {
		// Left pending; the reclaimer retries it.
		slog.ErrorContext(ctx, "failed to send to DLQ", "error", err, "reason", reason)
		return
	}
	metrics.MessagesDeadLettered.WithLabelValues(reason).Inc()

	if w.deadLetters == nil {
		return
	}

	body := msg.Body
	if len(body) == 0 {
		if raw, ok := msg.Raw.Values["body"].(string); ok {
			body = []byte(raw)
		}
	}

	dl := &model.DeadLetter{
		ID:        id.New(),
		MessageID: msg.ID,
		EventID:   msg.EventID,
		EventType: msg.EventType,
		Attempts:  msg.Attempt,
		Error:     errMsg,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.deadLetters.Create(ctx, dl); err != nil {
		slog.ErrorContext(ctx, "failed to record dead letter", "error", err, "reason", reason)
	}
}
