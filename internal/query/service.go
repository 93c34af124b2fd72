package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"basegraph.app/pulse/internal/metrics"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/store"
)

const (
	DefaultCountOffset = 10
	MaxCountOffset     = 7 * 24 * 60

	DefaultTimelineHours    = 24
	MaxTimelineHours        = 168
	DefaultTimelineInterval = 60
	MaxTimelineInterval     = 1440
	MaxTimelineBuckets      = 2016
)

type Config struct {
	StoreTimeout time.Duration
	PageSize     int32
}

// Service answers read-only metric queries over the event and summary stores.
type Service struct {
	events    store.EventStore
	summaries store.PRSummaryStore
	cfg       Config
	now       func() time.Time
}

func NewService(events store.EventStore, summaries store.PRSummaryStore, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = store.DefaultPageSize
	}
	return &Service{
		events:    events,
		summaries: summaries,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}

type EventCounts struct {
	Range         TimeRange
	OffsetMinutes int
	Counts        map[model.EventType]int64
	Total         int64
}

// CountEvents counts tracked events per type with created_at in [now-offset, now].
func (s *Service) CountEvents(ctx context.Context, offsetMinutes int) (*EventCounts, error) {
	if offsetMinutes < 0 || offsetMinutes > MaxCountOffset {
		return nil, invalid("offset", "must be between 0 and %d minutes", MaxCountOffset)
	}
	defer observe("count")()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	end := s.now().UTC()
	start := end.Add(-time.Duration(offsetMinutes) * time.Minute)

	result := &EventCounts{
		Range:         TimeRange{Start: start, End: end},
		OffsetMinutes: offsetMinutes,
		Counts:        make(map[model.EventType]int64, len(model.TrackedEventTypes)),
	}
	for _, t := range model.TrackedEventTypes {
		var n int64
		err := s.drain(ctx, "count", t, start, end, func(model.NormalizedEvent) error {
			n++
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.Counts[t] = n
		result.Total += n
	}
	return result, nil
}

type Bucket struct {
	Start  time.Time
	End    time.Time
	Counts map[model.EventType]int64
	Total  int64
}

type Timeline struct {
	Range           TimeRange
	Hours           int
	IntervalMinutes int
	Buckets         []Bucket
	Totals          map[model.EventType]int64
	Total           int64
}

// Timeline buckets tracked events over [now-hours, now] into interval-minute buckets.
// Bucket i covers [start+i*w, start+(i+1)*w); the last bucket ends at now and includes it,
// so the buckets partition exactly the window CountEvents would scan.
func (s *Service) Timeline(ctx context.Context, hours, intervalMinutes int) (*Timeline, error) {
	if hours < 1 || hours > MaxTimelineHours {
		return nil, invalid("hours", "must be between 1 and %d", MaxTimelineHours)
	}
	if intervalMinutes < 1 || intervalMinutes > MaxTimelineInterval {
		return nil, invalid("interval", "must be between 1 and %d minutes", MaxTimelineInterval)
	}
	n := bucketCount(hours, intervalMinutes)
	if n > MaxTimelineBuckets {
		return nil, invalid("interval", "too many buckets (%d > %d), use a wider interval", n, MaxTimelineBuckets)
	}
	defer observe("timeline")()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	end := s.now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)
	width := time.Duration(intervalMinutes) * time.Minute

	tl := &Timeline{
		Range:           TimeRange{Start: start, End: end},
		Hours:           hours,
		IntervalMinutes: intervalMinutes,
		Buckets:         make([]Bucket, n),
		Totals:          make(map[model.EventType]int64, len(model.TrackedEventTypes)),
	}
	for i := range tl.Buckets {
		b := &tl.Buckets[i]
		b.Start = start.Add(time.Duration(i) * width)
		b.End = b.Start.Add(width)
		if b.End.After(end) {
			b.End = end
		}
		b.Counts = make(map[model.EventType]int64, len(model.TrackedEventTypes))
		for _, t := range model.TrackedEventTypes {
			b.Counts[t] = 0
		}
	}

	for _, t := range model.TrackedEventTypes {
		err := s.drain(ctx, "timeline", t, start, end, func(e model.NormalizedEvent) error {
			b := &tl.Buckets[bucketIndex(e.CreatedAt, start, width, n)]
			b.Counts[t]++
			b.Total++
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, b := range tl.Buckets {
		for t, c := range b.Counts {
			tl.Totals[t] += c
		}
		tl.Total += b.Total
	}
	return tl, nil
}

func bucketCount(hours, intervalMinutes int) int {
	total := hours * 60
	return (total + intervalMinutes - 1) / intervalMinutes
}

func bucketIndex(at, start time.Time, width time.Duration, n int) int {
	i := int(at.Sub(start) / width)
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

type PRAverage struct {
	Repo      string
	PRCount   int64
	Average   *time.Duration
	FirstPRAt *time.Time
	LastPRAt  *time.Time
}

// Sufficient reports whether the repository has enough pull requests for an average.
func (a PRAverage) Sufficient() bool {
	return a.Average != nil
}

// PRAverage reads the running summary for repo. A repository with no summary is
// reported with a zero count rather than as an error.
func (s *Service) PRAverage(ctx context.Context, repo string) (*PRAverage, error) {
	if err := ValidateRepoName(repo); err != nil {
		return nil, err
	}
	defer observe("pr_average")()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	summary, err := s.summaries.Get(ctx, repo)
	if errors.Is(err, store.ErrNotFound) {
		return &PRAverage{Repo: repo}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading pr summary: %w", err)
	}

	result := &PRAverage{
		Repo:      repo,
		PRCount:   summary.PRCount,
		FirstPRAt: &summary.FirstPRAt,
		LastPRAt:  &summary.LastPRAt,
	}
	if avg, ok := summary.Average(); ok {
		result.Average = &avg
	}
	return result, nil
}

// ListRepos returns every repository with at least two pull requests.
func (s *Service) ListRepos(ctx context.Context) ([]model.RepoPRSummary, error) {
	defer observe("list_repos")()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	repos, err := s.summaries.ListWithMinCount(ctx, 2)
	if err != nil {
		return nil, fmt.Errorf("listing pr summaries: %w", err)
	}
	return repos, nil
}

func (s *Service) drain(ctx context.Context, name string, t model.EventType, start, end time.Time, fn func(model.NormalizedEvent) error) error {
	q := store.RangeQuery{Type: t, Start: start, End: end, Limit: s.cfg.PageSize}
	var read int
	err := store.DrainRange(ctx, s.events, q, func(e model.NormalizedEvent) error {
		read++
		return fn(e)
	})
	metrics.QueryRangePages.WithLabelValues(name).Add(float64(read))
	if err != nil {
		return fmt.Errorf("scanning %s: %w", t, err)
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func observe(name string) func() {
	start := time.Now()
	return func() {
		metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}
