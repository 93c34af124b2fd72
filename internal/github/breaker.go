package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"basegraph.app/pulse/internal/metrics"
)

// BreakerSource guards a Source with a circuit breaker so a failing GitHub API is not
// hammered on every scheduled poll. Rate limits and 304s are answers, not failures.
type BreakerSource struct {
	next Source
	cb   *gobreaker.CircuitBreaker[FetchResult]
	name string
}

type BreakerConfig struct {
	Name             string
	MaxHalfOpen      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "github-events",
		MaxHalfOpen:      1,
		Interval:         5 * time.Minute,
		OpenTimeout:      2 * time.Minute,
		FailureThreshold: 5,
	}
}

func NewBreakerSource(next Source, cfg BreakerConfig) *BreakerSource {
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[FetchResult](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpen,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("circuit breaker state transition",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerSource{next: next, cb: cb, name: cfg.Name}
}

func (b *BreakerSource) Fetch(ctx context.Context, cacheToken string) (FetchResult, error) {
	result, err := b.cb.Execute(func() (FetchResult, error) {
		return b.next.Fetch(ctx, cacheToken)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return FetchResult{}, &TransportError{Err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return FetchResult{}, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// State exposes the breaker state for health reporting.
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
