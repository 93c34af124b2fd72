package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/internal/queue"
)

// PendingSource exposes the consumer group's pending entries list.
type PendingSource interface {
	Pending(ctx context.Context, minIdle time.Duration, count int64) ([]redis.XPendingExt, error)
	Claim(ctx context.Context, consumer string, minIdle time.Duration, id string) (redis.XMessage, bool, error)
}

// MessageHandler is the part of Worker the reclaimer drives.
type MessageHandler interface {
	ProcessMessage(ctx context.Context, msg queue.Message) error
	HandleFailedMessage(ctx context.Context, msg queue.Message, err error)
	HandleMalformed(ctx context.Context, bad queue.Malformed)
}

type ReclaimerConfig struct {
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer periodically reclaims stale pending messages.
// This handles the crash recovery scenario where a worker dies
// after XREADGROUP but before XACK.
type Reclaimer struct {
	source  PendingSource
	handler MessageHandler
	cfg     ReclaimerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
}

func NewReclaimer(source PendingSource, handler MessageHandler, cfg ReclaimerConfig) *Reclaimer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reclaimer{
		source:    source,
		handler:   handler,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the reclaimer loop. Blocks until Stop() is called or ctx is done.
func (r *Reclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pulse.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if err := r.ReclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

// Stop signals the reclaimer to stop gracefully. Safe to call more than once.
func (r *Reclaimer) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.stoppedCh
}

// ReclaimOnce performs one reclaim cycle.
func (r *Reclaimer) ReclaimOnce(ctx context.Context) error {
	pending, err := r.source.Pending(ctx, r.cfg.MinIdle, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "found stale pending messages", "count", len(pending))

	for _, p := range pending {
		if err := r.reclaimMessage(ctx, p); err != nil {
			slog.ErrorContext(ctx, "failed to reclaim message",
				"error", err,
				"message_id", p.ID,
				"original_consumer", p.Consumer,
				"idle_time", p.Idle)
		}
	}

	return nil
}

func (r *Reclaimer) reclaimMessage(ctx context.Context, pending redis.XPendingExt) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(pending.ID),
	})

	slog.InfoContext(ctx, "reclaiming stale message",
		"original_consumer", pending.Consumer,
		"idle_time", pending.Idle,
		"retry_count", pending.RetryCount)

	msg, ok, err := r.source.Claim(ctx, r.cfg.Consumer, r.cfg.MinIdle, pending.ID)
	if err != nil {
		return err
	}
	if !ok {
		slog.DebugContext(ctx, "message already reclaimed by another worker")
		return nil
	}

	parsed, err := queue.ParseMessage(msg)
	if err != nil {
		r.handler.HandleMalformed(ctx, queue.Malformed{Raw: msg, Err: err})
		return nil
	}

	// A crashed consumer never rewrote the attempt field; the delivery count is the better bound.
	if int(pending.RetryCount) > parsed.Attempt {
		parsed.Attempt = int(pending.RetryCount)
	}

	start := time.Now()
	if err := r.handler.ProcessMessage(ctx, parsed); err != nil {
		r.handler.HandleFailedMessage(ctx, parsed, err)
		return fmt.Errorf("processing reclaimed message: %w", err)
	}

	slog.InfoContext(ctx, "reclaimed message processed successfully",
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}
