package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/processor"
	"basegraph.app/pulse/internal/queue"
	"basegraph.app/pulse/internal/worker"
)

func message(id string, attempt int) queue.Message {
	return queue.Message{
		ID:        id,
		EventID:   "ev-" + id,
		EventType: string(model.EventTypeWatch),
		Body:      []byte(fmt.Sprintf(`{"id":"ev-%s","type":"WatchEvent"}`, id)),
		Event:     model.RawEvent{ID: "ev-" + id, Type: model.EventTypeWatch},
		Attempt:   attempt,
	}
}

var _ = Describe("Worker", func() {
	var (
		ctx         context.Context
		consumer    *mockConsumer
		handler     *mockHandler
		deadLetters *mockDeadLetterStore
		w           *worker.Worker
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		handler = &mockHandler{}
		deadLetters = &mockDeadLetterStore{}
		w = worker.New(consumer, handler, deadLetters, worker.Config{MaxAttempts: 3, Concurrency: 1})
	})

	Describe("ProcessMessage", func() {
		It("acknowledges after the event is handled", func() {
			Expect(w.ProcessMessage(ctx, message("1-0", 1))).To(Succeed())
			Expect(consumer.ackedIDs()).To(Equal([]string{"1-0"}))
		})

		It("acknowledges duplicates without further work", func() {
			handler.handleFn = func(context.Context, model.RawEvent) (processor.Result, error) {
				return processor.ResultDuplicate, nil
			}
			Expect(w.ProcessMessage(ctx, message("1-0", 2))).To(Succeed())
			Expect(consumer.ackedIDs()).To(Equal([]string{"1-0"}))
		})

		It("leaves the message unacknowledged when handling fails", func() {
			handler.handleFn = func(context.Context, model.RawEvent) (processor.Result, error) {
				return "", errors.New("db down")
			}
			Expect(w.ProcessMessage(ctx, message("1-0", 1))).To(MatchError("db down"))
			Expect(consumer.ackedIDs()).To(BeEmpty())
		})

		It("succeeds even if the ack fails", func() {
			consumer.ackErr = errors.New("redis down")
			Expect(w.ProcessMessage(ctx, message("1-0", 1))).To(Succeed())
		})
	})

	Describe("HandleFailedMessage", func() {
		It("requeues while attempts remain", func() {
			w.HandleFailedMessage(ctx, message("1-0", 2), errors.New("db down"))
			Expect(consumer.requeued).To(Equal([]string{"1-0"}))
			Expect(consumer.dlq).To(BeEmpty())
			Expect(deadLetters.created).To(BeEmpty())
		})

		It("dead-letters once attempts are exhausted", func() {
			w.HandleFailedMessage(ctx, message("1-0", 3), errors.New("db down"))
			Expect(consumer.requeued).To(BeEmpty())
			Expect(consumer.dlq).To(Equal([]string{"1-0"}))

			Expect(deadLetters.created).To(HaveLen(1))
			dl := deadLetters.created[0]
			Expect(dl.ID).NotTo(BeZero())
			Expect(dl.MessageID).To(Equal("1-0"))
			Expect(dl.EventID).To(Equal("ev-1-0"))
			Expect(dl.Attempts).To(Equal(3))
			Expect(dl.Error).To(Equal("db down"))
			Expect(string(dl.Body)).To(ContainSubstring(`"ev-1-0"`))
		})

		It("dead-letters invalid events on the first attempt", func() {
			err := fmt.Errorf("%w: %w", processor.ErrInvalidEvent, model.ErrUnsupportedEventType)
			w.HandleFailedMessage(ctx, message("1-0", 1), err)
			Expect(consumer.requeued).To(BeEmpty())
			Expect(consumer.dlq).To(Equal([]string{"1-0"}))
		})
	})

	Describe("HandleMalformed", func() {
		It("dead-letters the raw entry", func() {
			raw := redis.XMessage{ID: "9-0", Values: map[string]any{"body": "not json"}}
			w.HandleMalformed(ctx, queue.Malformed{Raw: raw, Err: errors.New("decoding body")})

			Expect(consumer.dlq).To(Equal([]string{"9-0"}))
			Expect(deadLetters.created).To(HaveLen(1))
			Expect(deadLetters.created[0].Attempts).To(Equal(1))
			Expect(string(deadLetters.created[0].Body)).To(Equal("not json"))
		})
	})

	Describe("Run", func() {
		It("processes batches on every goroutine until cancelled", func() {
			var batch atomic.Int32
			consumer.readFn = func(ctx context.Context) ([]queue.Message, []queue.Malformed, error) {
				n := batch.Add(1)
				if n <= 4 {
					return []queue.Message{message(fmt.Sprintf("%d-0", n), 1)}, nil, nil
				}
				<-ctx.Done()
				return nil, nil, ctx.Err()
			}
			w = worker.New(consumer, handler, deadLetters, worker.Config{MaxAttempts: 3, Concurrency: 2})

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- w.Run(runCtx) }()

			Eventually(consumer.ackedIDs).Should(ConsistOf("1-0", "2-0", "3-0", "4-0"))
			cancel()
			Eventually(done, time.Second).Should(Receive(MatchError(context.Canceled)))
		})

		It("returns nil after Stop", func() {
			consumer.readFn = func(context.Context) ([]queue.Message, []queue.Malformed, error) {
				time.Sleep(5 * time.Millisecond)
				return nil, nil, nil
			}

			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			w.Stop()
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
