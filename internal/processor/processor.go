package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/internal/metrics"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/service"
	"basegraph.app/pulse/internal/store"
)

// ErrInvalidEvent marks an event that can never be processed successfully.
// Callers should dead-letter it instead of retrying.
var ErrInvalidEvent = errors.New("invalid event")

const defaultMaxSummaryAttempts = 5

type Result string

const (
	ResultInserted  Result = "inserted"
	ResultDuplicate Result = "duplicate"
)

type Config struct {
	// PRSummaryActions restricts summary maintenance to these pull request actions.
	// Empty means every PullRequestEvent counts.
	PRSummaryActions []string
	// MaxSummaryAttempts bounds compare-and-swap retries within one transaction.
	MaxSummaryAttempts int
}

type Processor struct {
	txRunner service.TxRunner
	cfg      Config
	now      func() time.Time
}

func New(txRunner service.TxRunner, cfg Config) *Processor {
	if cfg.MaxSummaryAttempts <= 0 {
		cfg.MaxSummaryAttempts = defaultMaxSummaryAttempts
	}
	return &Processor{
		txRunner: txRunner,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the processed_at clock. Used by tests.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Handle records raw and, for pull requests, folds it into the repository summary.
// Both writes commit together; a duplicate event ID commits nothing and reports ResultDuplicate.
func (p *Processor) Handle(ctx context.Context, raw model.RawEvent) (Result, error) {
	event, payload, err := model.Normalize(raw, p.now())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:   logger.Ptr(event.EventID),
		EventType: logger.Ptr(event.Type.String()),
		Repo:      logger.Ptr(event.Repo),
		Component: "pulse.processor",
	})

	result := ResultDuplicate
	err = p.txRunner.WithTx(ctx, func(sp service.StoreProvider) error {
		inserted, err := sp.Events().Upsert(ctx, &event)
		if err != nil {
			return fmt.Errorf("upserting event: %w", err)
		}
		if !inserted {
			return nil
		}
		result = ResultInserted

		if payload.EventType() != model.EventTypePullRequest || !p.countsTowardSummary(event.Action()) {
			return nil
		}
		return p.updateSummary(ctx, sp.PRSummaries(), event)
	})
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues(string(raw.Type), "failed").Inc()
		return "", err
	}

	metrics.MessagesProcessed.WithLabelValues(string(raw.Type), string(result)).Inc()
	if result == ResultDuplicate {
		slog.DebugContext(ctx, "duplicate event skipped")
	} else {
		slog.DebugContext(ctx, "event stored", "action", event.Action())
	}
	return result, nil
}

func (p *Processor) countsTowardSummary(action string) bool {
	if len(p.cfg.PRSummaryActions) == 0 {
		return true
	}
	return slices.Contains(p.cfg.PRSummaryActions, action)
}

func (p *Processor) updateSummary(ctx context.Context, summaries store.PRSummaryStore, event model.NormalizedEvent) error {
	for attempt := 1; attempt <= p.cfg.MaxSummaryAttempts; attempt++ {
		current, err := summaries.Get(ctx, event.Repo)
		if errors.Is(err, store.ErrNotFound) {
			first := model.NewRepoPRSummary(event.Repo, event.CreatedAt)
			first.UpdatedAt = event.ProcessedAt
			created, err := summaries.Create(ctx, &first)
			if err != nil {
				return fmt.Errorf("creating pr summary: %w", err)
			}
			if created {
				return nil
			}
			// Lost the race to create; fold into the winner's row.
			metrics.SummaryConflicts.Inc()
			continue
		}
		if err != nil {
			return fmt.Errorf("loading pr summary: %w", err)
		}

		next, clamped := current.Observe(event.CreatedAt)
		next.UpdatedAt = event.ProcessedAt
		if clamped {
			metrics.OutOfOrderPREvents.Inc()
			slog.WarnContext(ctx, "out of order pull request event, delta clamped to zero",
				"created_at", event.CreatedAt,
				"last_pr_at", current.LastPRAt)
		}

		err = summaries.CompareAndSwap(ctx, &next)
		if errors.Is(err, store.ErrConflict) {
			metrics.SummaryConflicts.Inc()
			slog.DebugContext(ctx, "pr summary changed concurrently, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return fmt.Errorf("updating pr summary: %w", err)
		}
		return nil
	}
	return fmt.Errorf("updating pr summary after %d attempts: %w", p.cfg.MaxSummaryAttempts, store.ErrConflict)
}
