package poller_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/internal/github"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/poller"
)

func raw(id string, t model.EventType) model.RawEvent {
	return model.RawEvent{ID: id, Type: t, Repo: model.Repo{Name: "a/b"}, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func success(token string, events ...model.RawEvent) func(context.Context, string) (github.FetchResult, error) {
	return func(context.Context, string) (github.FetchResult, error) {
		return github.FetchResult{Status: github.StatusSuccess, CacheToken: token, Events: events, PollInterval: time.Minute}, nil
	}
}

var _ = Describe("Poller", func() {
	var (
		ctx      context.Context
		source   *mockSource
		states   *mockPollStateStore
		producer *mockProducer
		failures *memoryFailureCounter
		p        *poller.Poller
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = &mockSource{}
		states = &mockPollStateStore{}
		producer = &mockProducer{}
		failures = &memoryFailureCounter{counts: map[string]int64{}}
		now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		p = poller.New(source, states, producer, failures, poller.Config{
			Stream:              "github_public_events",
			MaxConsecutiveFails: 3,
		}).WithClock(func() time.Time { return now })
	})

	Describe("first run", func() {
		It("enqueues tracked events oldest first and saves the cursor", func() {
			source.fetchFn = success(`"etag-1"`,
				raw("3", model.EventTypePullRequest),
				raw("2", "PushEvent"),
				raw("1", model.EventTypeWatch),
			)

			cycle, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Outcome).To(Equal(poller.StateApplying))
			Expect(cycle.Enqueued).To(Equal(2))
			Expect(producer.enqueuedIDs()).To(Equal([]string{"1", "3"}))

			Expect(source.tokens).To(Equal([]string{""}))
			Expect(states.state.Token()).To(Equal(`"etag-1"`))
			Expect(states.state.LastSeen()).To(Equal("3"))
			Expect(states.state.PolledAt).To(Equal(now))
			Expect(states.state.PollInterval).To(Equal(time.Minute))
		})
	})

	Context("with a saved cursor", func() {
		BeforeEach(func() {
			states.state = &model.PollState{
				Stream:      "github_public_events",
				CacheToken:  ptr(`"etag-1"`),
				LastEventID: ptr("3"),
				PolledAt:    now.Add(-time.Minute),
			}
		})

		It("sends the stored cache token", func() {
			_, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(source.tokens).To(Equal([]string{`"etag-1"`}))
		})

		It("leaves state untouched and enqueues nothing when not modified", func() {
			before := *states.state

			cycle, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Outcome).To(Equal(poller.StateNoChange))
			Expect(producer.batches).To(BeEmpty())
			Expect(states.saves).To(BeZero())
			Expect(*states.state).To(Equal(before))
		})

		It("backs off without mutating state when rate limited", func() {
			source.fetchFn = func(context.Context, string) (github.FetchResult, error) {
				return github.FetchResult{Status: github.StatusRateLimited, RetryAfter: 90 * time.Second}, nil
			}

			cycle, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Outcome).To(Equal(poller.StateBackoff))
			Expect(cycle.RetryAfter).To(Equal(90 * time.Second))
			Expect(producer.batches).To(BeEmpty())
			Expect(states.saves).To(BeZero())
		})

		It("only enqueues events newer than the cursor", func() {
			source.fetchFn = success(`"etag-2"`,
				raw("5", model.EventTypeIssues),
				raw("4", model.EventTypeWatch),
				raw("3", model.EventTypeWatch),
				raw("2", model.EventTypeWatch),
			)

			_, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(producer.enqueuedIDs()).To(Equal([]string{"4", "5"}))
			Expect(states.state.LastSeen()).To(Equal("5"))
			Expect(states.state.Token()).To(Equal(`"etag-2"`))
		})

		It("accepts every event when the cursor fell off the page", func() {
			source.fetchFn = success(`"etag-2"`,
				raw("9", model.EventTypeWatch),
				raw("8", model.EventTypeWatch),
			)

			cycle, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Gap).To(BeTrue())
			Expect(producer.enqueuedIDs()).To(Equal([]string{"8", "9"}))
			Expect(states.state.LastSeen()).To(Equal("9"))
		})

		It("takes the page's newest id on a gap even when a stale page moves the cursor back", func() {
			source.fetchFn = success(`"etag-0"`,
				raw("2", model.EventTypeWatch),
				raw("1", model.EventTypeWatch),
			)

			cycle, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Gap).To(BeTrue())
			Expect(producer.enqueuedIDs()).To(Equal([]string{"1", "2"}))
			Expect(states.state.LastSeen()).To(Equal("2"))
		})

		It("keeps the cursor but stores the new token for an empty page", func() {
			source.fetchFn = success(`"etag-2"`)

			_, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(producer.batches).To(BeEmpty())
			Expect(states.state.LastSeen()).To(Equal("3"))
			Expect(states.state.Token()).To(Equal(`"etag-2"`))
		})

		It("never advances the cursor when enqueue fails", func() {
			source.fetchFn = success(`"etag-2"`, raw("4", model.EventTypeWatch))
			producer.enqueueErr = errors.New("redis down")

			cycle, err := p.Poll(ctx)
			Expect(err).To(MatchError(ContainSubstring("redis down")))
			Expect(cycle.Outcome).To(Equal(poller.StateFailed))
			Expect(states.saves).To(BeZero())
			Expect(states.state.LastSeen()).To(Equal("3"))
			Expect(states.state.Token()).To(Equal(`"etag-1"`))
		})

		It("redelivers the same events on the next cycle after a failed save", func() {
			source.fetchFn = success(`"etag-2"`, raw("4", model.EventTypeWatch))
			states.saveErr = errors.New("db down")

			_, err := p.Poll(ctx)
			Expect(err).To(HaveOccurred())

			states.saveErr = nil
			_, err = p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(producer.enqueuedIDs()).To(Equal([]string{"4", "4"}))
			Expect(states.state.LastSeen()).To(Equal("4"))
		})
	})

	Describe("failure accounting", func() {
		BeforeEach(func() {
			source.fetchFn = func(context.Context, string) (github.FetchResult, error) {
				return github.FetchResult{}, &github.TransportError{Err: errors.New("connection refused")}
			}
		})

		It("reports a persistent failure on the third consecutive failure", func() {
			for i := 1; i <= 2; i++ {
				cycle, err := p.Poll(ctx)
				Expect(err).To(HaveOccurred())
				Expect(github.IsTransportError(err)).To(BeTrue())
				Expect(err).NotTo(MatchError(poller.ErrPersistentFailure))
				Expect(cycle.Failures).To(Equal(int64(i)))
			}

			cycle, err := p.Poll(ctx)
			Expect(err).To(MatchError(poller.ErrPersistentFailure))
			Expect(github.IsTransportError(err)).To(BeTrue())
			Expect(cycle.Failures).To(Equal(int64(3)))
			Expect(states.saves).To(BeZero())
		})

		It("resets the streak after a successful cycle", func() {
			_, _ = p.Poll(ctx)
			_, _ = p.Poll(ctx)

			source.fetchFn = nil
			_, err := p.Poll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(failures.counts).To(BeEmpty())
		})

		It("bounds a hung fetch and counts it as a failure", func() {
			p = poller.New(source, states, producer, failures, poller.Config{
				Stream:              "github_public_events",
				MaxConsecutiveFails: 3,
				FetchTimeout:        20 * time.Millisecond,
			})
			source.fetchFn = func(ctx context.Context, _ string) (github.FetchResult, error) {
				<-ctx.Done()
				return github.FetchResult{}, &github.TransportError{Err: ctx.Err()}
			}

			cycle, err := p.Poll(ctx)
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(cycle.Outcome).To(Equal(poller.StateFailed))
			Expect(cycle.Failures).To(Equal(int64(1)))
			Expect(states.saves).To(BeZero())
		})

		It("counts a state store failure like a transport failure", func() {
			source.fetchFn = nil
			states.getErr = errors.New("db down")

			cycle, err := p.Poll(ctx)
			Expect(err).To(MatchError(ContainSubstring("loading poll state")))
			Expect(cycle.Failures).To(Equal(int64(1)))
			Expect(source.tokens).To(BeEmpty())
		})
	})
})

func ptr(s string) *string { return &s }
