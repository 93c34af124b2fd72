package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Run polls until ctx is cancelled. Cycles are at least minInterval apart and
// further delayed by the remote's advertised poll interval or rate limit reset.
func (p *Poller) Run(ctx context.Context, minInterval time.Duration) error {
	limiter := rate.NewLimiter(rate.Every(minInterval), 1)

	slog.InfoContext(ctx, "poller started", "stream", p.cfg.Stream, "min_interval", minInterval)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return ignoreCancel(ctx, err)
		}

		cycle, err := p.Poll(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, ErrPersistentFailure) {
			slog.DebugContext(ctx, "poll cycle failed", "error", err)
		}

		if err := sleep(ctx, nextDelay(cycle)); err != nil {
			return ignoreCancel(ctx, err)
		}
	}
}

// nextDelay is the wait the remote asked for after cycle.
func nextDelay(cycle Cycle) time.Duration {
	return max(cycle.RetryAfter, cycle.PollInterval)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
