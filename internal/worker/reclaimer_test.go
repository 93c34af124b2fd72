package worker_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/internal/queue"
	"basegraph.app/pulse/internal/worker"
)

var _ = Describe("Reclaimer", func() {
	var (
		ctx       context.Context
		source    *mockPendingSource
		handler   *mockMessageHandler
		reclaimer *worker.Reclaimer
		entry     redis.XMessage
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = &mockPendingSource{}
		handler = &mockMessageHandler{}
		reclaimer = worker.NewReclaimer(source, handler, worker.ReclaimerConfig{Consumer: "worker-b"})

		values, err := queue.EncodeEvent(message("1-0", 1).Event, "")
		Expect(err).NotTo(HaveOccurred())
		entry = redis.XMessage{ID: "1-0", Values: values}
	})

	It("stops once and tolerates repeated Stop calls", func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			reclaimer.Run(ctx)
		}()

		Expect(reclaimer.Stop).NotTo(Panic())
		Expect(reclaimer.Stop).NotTo(Panic())
		Eventually(done).Should(BeClosed())
	})

	It("does nothing without stale entries", func() {
		Expect(reclaimer.ReclaimOnce(ctx)).To(Succeed())
		Expect(source.claimed).To(BeEmpty())
	})

	It("claims and processes stale entries using the delivery count as attempt", func() {
		source.pending = []redis.XPendingExt{{ID: "1-0", Consumer: "worker-a", RetryCount: 3}}
		source.claimFn = func(string) (redis.XMessage, bool, error) { return entry, true, nil }

		Expect(reclaimer.ReclaimOnce(ctx)).To(Succeed())
		Expect(source.claimed).To(Equal([]string{"1-0"}))
		Expect(handler.processed).To(HaveLen(1))
		Expect(handler.processed[0].EventID).To(Equal("ev-1-0"))
		Expect(handler.processed[0].Attempt).To(Equal(3))
	})

	It("skips entries another consumer claimed first", func() {
		source.pending = []redis.XPendingExt{{ID: "1-0"}}

		Expect(reclaimer.ReclaimOnce(ctx)).To(Succeed())
		Expect(handler.processed).To(BeEmpty())
	})

	It("routes processing failures to the failure path", func() {
		source.pending = []redis.XPendingExt{{ID: "1-0", RetryCount: 1}}
		source.claimFn = func(string) (redis.XMessage, bool, error) { return entry, true, nil }
		handler.processFn = func(context.Context, queue.Message) error { return errors.New("db down") }

		Expect(reclaimer.ReclaimOnce(ctx)).To(Succeed())
		Expect(handler.failed).To(HaveLen(1))
	})

	It("dead-letters entries that cannot be parsed", func() {
		source.pending = []redis.XPendingExt{{ID: "2-0"}}
		source.claimFn = func(string) (redis.XMessage, bool, error) {
			return redis.XMessage{ID: "2-0", Values: map[string]any{"attempt": "1"}}, true, nil
		}

		Expect(reclaimer.ReclaimOnce(ctx)).To(Succeed())
		Expect(handler.processed).To(BeEmpty())
		Expect(handler.malformed).To(HaveLen(1))
	})
})
