package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/common/id"
	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/common/otel"
	"basegraph.app/pulse/core/config"
	"basegraph.app/pulse/core/db"
	"basegraph.app/pulse/internal/github"
	"basegraph.app/pulse/internal/poller"
	"basegraph.app/pulse/internal/queue"
	"basegraph.app/pulse/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypePoller)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		return 1
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}()

	logger.Setup(cfg)

	slog.InfoContext(ctx, "pulse poller starting",
		"env", cfg.Env,
		"stream", cfg.Poller.Stream,
		"once", cfg.Poller.Once,
		"authenticated", cfg.GitHub.Authenticated())

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		return 1
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		return 1
	}
	defer database.Close()

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		return 1
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		return 1
	}

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	defer producer.Close()

	stores := store.NewStores(database.Queries())

	source := github.NewBreakerSource(
		github.NewClient(cfg.GitHub, &http.Client{Timeout: cfg.GitHub.Timeout}),
		github.DefaultBreakerConfig(),
	)

	p := poller.New(source, stores.PollStates(), producer, poller.NewRedisFailureCounter(redisClient), poller.Config{
		Stream:              cfg.Poller.Stream,
		MaxConsecutiveFails: cfg.Poller.MaxConsecutiveFails,
		FetchTimeout:        cfg.Poller.FetchTimeout,
		EnqueueTimeout:      cfg.Poller.EnqueueTimeout,
		StoreTimeout:        cfg.Poller.StoreTimeout,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Poller.Once {
		cycle, err := p.Poll(ctx)
		if errors.Is(err, poller.ErrPersistentFailure) {
			return 1
		}
		slog.InfoContext(ctx, "poll finished",
			"outcome", cycle.Outcome.String(),
			"enqueued", cycle.Enqueued,
			"next_poll_after", max(cycle.PollInterval, cycle.RetryAfter))
		return 0
	}

	if err := p.Run(ctx, cfg.Poller.MinInterval); err != nil {
		slog.ErrorContext(ctx, "poller stopped", "error", err)
		return 1
	}
	slog.InfoContext(ctx, "poller shutdown complete")
	return 0
}

const banner = `
██████╗ ██╗   ██╗██╗     ███████╗███████╗    ██████╗  ██████╗ ██╗     ██╗     ███████╗██████╗
██╔══██╗██║   ██║██║     ██╔════╝██╔════╝    ██╔══██╗██╔═══██╗██║     ██║     ██╔════╝██╔══██╗
██████╔╝██║   ██║██║     ███████╗█████╗      ██████╔╝██║   ██║██║     ██║     █████╗  ██████╔╝
██╔═══╝ ██║   ██║██║     ╚════██║██╔══╝      ██╔═══╝ ██║   ██║██║     ██║     ██╔══╝  ██╔══██╗
██║     ╚██████╔╝███████╗███████║███████╗    ██║     ╚██████╔╝███████╗███████╗███████╗██║  ██║
╚═╝      ╚═════╝ ╚══════╝╚══════╝╚══════╝    ╚═╝      ╚═════╝ ╚══════╝╚══════╝╚══════╝╚═╝  ╚═╝
`
