package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/pulse/common/id"
	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/internal/github"
	"basegraph.app/pulse/internal/metrics"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/queue"
	"basegraph.app/pulse/internal/store"
)

// ErrPersistentFailure wraps the cycle error once the consecutive failure budget is spent.
// The poller keeps running; it is a signal for alerting, not a stop condition.
var ErrPersistentFailure = errors.New("poller failing persistently")

type Config struct {
	Stream              string
	MaxConsecutiveFails int
	FetchTimeout        time.Duration
	EnqueueTimeout      time.Duration
	StoreTimeout        time.Duration
}

// Cycle describes one completed poll cycle.
type Cycle struct {
	ID           int64
	Outcome      State
	Fetched      int
	Enqueued     int
	Gap          bool
	Failures     int64
	PollInterval time.Duration
	RetryAfter   time.Duration
}

// Poller is the single writer of a stream's PollState. Running two pollers
// against the same stream is not supported.
type Poller struct {
	source   github.Source
	states   store.PollStateStore
	producer queue.Producer
	failures FailureCounter
	cfg      Config
	now      func() time.Time
}

func New(source github.Source, states store.PollStateStore, producer queue.Producer, failures FailureCounter, cfg Config) *Poller {
	if cfg.MaxConsecutiveFails < 1 {
		cfg.MaxConsecutiveFails = 3
	}
	return &Poller{
		source:   source,
		states:   states,
		producer: producer,
		failures: failures,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the polled_at clock. Used by tests.
func (p *Poller) WithClock(now func() time.Time) *Poller {
	p.now = now
	return p
}

// Poll runs one Idle -> Fetching -> {Applying, Backoff, NoChange} -> Idle cycle.
// PollState is written only after every selected event was enqueued.
func (p *Poller) Poll(ctx context.Context) (Cycle, error) {
	cycle := Cycle{ID: id.New(), Outcome: StateIdle}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		CycleID:   logger.Ptr(cycle.ID),
		Component: "pulse.poller",
	})
	sc := logger.StartSpan(ctx, "poller.poll")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(logger.AttrCycleID.Int64(cycle.ID))

	state, err := p.loadState(ctx)
	if err != nil {
		return p.fail(ctx, sc, cycle, fmt.Errorf("loading poll state: %w", err))
	}

	cycle.Outcome = StateFetching
	result, err := p.fetch(ctx, state.Token())
	cycle.Outcome = afterFetch(result.Status, err)
	cycle.PollInterval = result.PollInterval

	switch cycle.Outcome {
	case StateFailed:
		if err == nil {
			err = fmt.Errorf("unexpected fetch status %s", result.Status)
		}
		return p.fail(ctx, sc, cycle, fmt.Errorf("fetching events: %w", err))

	case StateNoChange:
		p.recordSuccess(ctx)
		metrics.PollCycles.WithLabelValues("not_modified").Inc()
		slog.InfoContext(ctx, "events feed not modified")
		return cycle, nil

	case StateBackoff:
		p.recordSuccess(ctx)
		cycle.RetryAfter = result.RetryAfter
		metrics.PollCycles.WithLabelValues("rate_limited").Inc()
		slog.WarnContext(ctx, "rate limited, backing off", "retry_after", result.RetryAfter)
		return cycle, nil
	}

	cycle.Fetched = len(result.Events)
	sel := selectNew(result.Events, state.LastSeen())
	cycle.Gap = sel.Gap
	if sel.Gap {
		slog.WarnContext(ctx, "last seen event not in page, accepting every event",
			"last_event_id", state.LastSeen(),
			"fetched", len(result.Events))
	}

	if len(sel.Events) > 0 {
		if err := p.enqueue(ctx, sc, sel.Events); err != nil {
			return p.fail(ctx, sc, cycle, fmt.Errorf("enqueueing events: %w", err))
		}
	}
	cycle.Enqueued = len(sel.Events)

	next := *state
	next.CacheToken = nil
	if result.CacheToken != "" {
		next.CacheToken = logger.Ptr(result.CacheToken)
	}
	if sel.NewestID != "" {
		next.LastEventID = logger.Ptr(sel.NewestID)
	}
	next.PollInterval = result.PollInterval
	next.PolledAt = p.now().UTC()

	if err := p.saveState(ctx, &next); err != nil {
		return p.fail(ctx, sc, cycle, fmt.Errorf("saving poll state: %w", err))
	}

	p.recordSuccess(ctx)
	metrics.PollCycles.WithLabelValues("applied").Inc()
	metrics.PollEventsEnqueued.Add(float64(cycle.Enqueued))
	metrics.PollEventsSkipped.WithLabelValues("already_seen").Add(float64(sel.AlreadySeen))
	metrics.PollEventsSkipped.WithLabelValues("untracked").Add(float64(sel.Untracked))

	slog.InfoContext(ctx, "poll cycle applied",
		"fetched", cycle.Fetched,
		"enqueued", cycle.Enqueued,
		"already_seen", sel.AlreadySeen,
		"untracked", sel.Untracked,
		"last_event_id", next.LastSeen())

	return cycle, nil
}

func (p *Poller) loadState(ctx context.Context) (*model.PollState, error) {
	ctx, cancel := withTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	state, err := p.states.Get(ctx, p.cfg.Stream)
	if errors.Is(err, store.ErrNotFound) {
		return &model.PollState{Stream: p.cfg.Stream}, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (p *Poller) saveState(ctx context.Context, state *model.PollState) error {
	ctx, cancel := withTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()
	return p.states.Save(ctx, state)
}

func (p *Poller) enqueue(ctx context.Context, sc *logger.SpanContext, events []model.RawEvent) error {
	ctx, cancel := withTimeout(ctx, p.cfg.EnqueueTimeout)
	defer cancel()

	return p.producer.EnqueueAll(ctx, events, sc.TraceID())
}

func (p *Poller) recordSuccess(ctx context.Context) {
	metrics.PollConsecutiveFailures.Set(0)
	if err := p.failures.Reset(ctx, p.cfg.Stream); err != nil {
		slog.WarnContext(ctx, "failed to reset failure counter", "error", err)
	}
}

func (p *Poller) fail(ctx context.Context, sc *logger.SpanContext, cycle Cycle, err error) (Cycle, error) {
	cycle.Outcome = StateFailed
	sc.Fail(err)
	metrics.PollCycles.WithLabelValues("failed").Inc()

	n, cerr := p.failures.Increment(ctx, p.cfg.Stream)
	if cerr != nil {
		slog.WarnContext(ctx, "failed to record poll failure", "error", cerr)
		return cycle, err
	}
	cycle.Failures = n
	metrics.PollConsecutiveFailures.Set(float64(n))

	if n >= int64(p.cfg.MaxConsecutiveFails) {
		slog.ErrorContext(ctx, "poll cycle failed persistently", "error", err, "consecutive_failures", n)
		return cycle, fmt.Errorf("%w (%d consecutive): %w", ErrPersistentFailure, n, err)
	}

	slog.WarnContext(ctx, "poll cycle failed, will retry", "error", err, "consecutive_failures", n)
	return cycle, err
}

func (p *Poller) fetch(ctx context.Context, token string) (github.FetchResult, error) {
	ctx, cancel := withTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()
	return p.source.Fetch(ctx, token)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
