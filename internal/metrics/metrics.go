package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poller
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_poll_cycles_total",
			Help: "Poll cycles by terminal outcome (applied, not_modified, rate_limited, failed)",
		},
		[]string{"outcome"},
	)

	PollEventsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_poll_events_enqueued_total",
			Help: "Events enqueued for processing by the poller",
		},
	)

	PollEventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_poll_events_skipped_total",
			Help: "Fetched events not enqueued, by reason (untracked, already_seen)",
		},
		[]string{"reason"},
	)

	PollConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_poll_consecutive_failures",
			Help: "Consecutive failed poll cycles",
		},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_github_fetch_duration_seconds",
			Help:    "Duration of GitHub events fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	// Processor
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_messages_processed_total",
			Help: "Queue messages handled by the processor, by event type and result (inserted, duplicate, failed)",
		},
		[]string{"event_type", "result"},
	)

	MessagesRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_messages_requeued_total",
			Help: "Queue messages requeued after a failed attempt",
		},
	)

	MessagesDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_messages_dead_lettered_total",
			Help: "Queue messages routed to the dead letter path, by reason",
		},
		[]string{"reason"},
	)

	SummaryConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_pr_summary_conflicts_total",
			Help: "Compare-and-swap conflicts while updating PR summaries",
		},
	)

	OutOfOrderPREvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_pr_out_of_order_total",
			Help: "Pull request events older than the summary's last PR (delta clamped to zero)",
		},
	)

	// Query
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_query_duration_seconds",
			Help:    "Duration of query service operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	QueryRangePages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_query_range_events_total",
			Help: "Events read from range queries, by query",
		},
		[]string{"query"},
	)
)
