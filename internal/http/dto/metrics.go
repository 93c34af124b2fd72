package dto

import (
	"math"
	"time"

	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/query"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type CountTimeRange struct {
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	OffsetMinutes int       `json:"offset_minutes"`
}

type EventCountResponse struct {
	TimeRange   CountTimeRange   `json:"time_range"`
	EventCounts map[string]int64 `json:"event_counts"`
	TotalEvents int64            `json:"total_events"`
}

func ToEventCountResponse(c *query.EventCounts) *EventCountResponse {
	return &EventCountResponse{
		TimeRange: CountTimeRange{
			StartTime:     c.Range.Start,
			EndTime:       c.Range.End,
			OffsetMinutes: c.OffsetMinutes,
		},
		EventCounts: typeCounts(c.Counts),
		TotalEvents: c.Total,
	}
}

type TimelineTimeRange struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Hours           int       `json:"hours"`
	IntervalMinutes int       `json:"interval_minutes"`
}

type TimelineBucket struct {
	BucketStart time.Time        `json:"bucket_start"`
	BucketEnd   time.Time        `json:"bucket_end"`
	Counts      map[string]int64 `json:"counts"`
	Total       int64            `json:"total"`
}

type TimelineResponse struct {
	TimeRange   TimelineTimeRange `json:"time_range"`
	DataPoints  []TimelineBucket  `json:"data_points"`
	Totals      map[string]int64  `json:"totals"`
	TotalEvents int64             `json:"total_events"`
}

func ToTimelineResponse(t *query.Timeline) *TimelineResponse {
	points := make([]TimelineBucket, len(t.Buckets))
	for i, b := range t.Buckets {
		points[i] = TimelineBucket{
			BucketStart: b.Start,
			BucketEnd:   b.End,
			Counts:      typeCounts(b.Counts),
			Total:       b.Total,
		}
	}
	return &TimelineResponse{
		TimeRange: TimelineTimeRange{
			StartTime:       t.Range.Start,
			EndTime:         t.Range.End,
			Hours:           t.Hours,
			IntervalMinutes: t.IntervalMinutes,
		},
		DataPoints:  points,
		Totals:      typeCounts(t.Totals),
		TotalEvents: t.Total,
	}
}

type PRAverageResponse struct {
	Repository           string     `json:"repository"`
	PRCount              int64      `json:"pr_count"`
	AverageTimeBetweenPR *float64   `json:"average_time_between_pr"`
	FirstPRDate          *time.Time `json:"first_pr_date,omitempty"`
	LastPRDate           *time.Time `json:"last_pr_date,omitempty"`
	Message              string     `json:"message,omitempty"`
}

func ToPRAverageResponse(a *query.PRAverage) *PRAverageResponse {
	resp := &PRAverageResponse{
		Repository:  a.Repo,
		PRCount:     a.PRCount,
		FirstPRDate: a.FirstPRAt,
		LastPRDate:  a.LastPRAt,
	}
	if a.Sufficient() {
		resp.AverageTimeBetweenPR = minutes(*a.Average)
	} else {
		resp.Message = "insufficient data: at least 2 pull requests are required"
	}
	return resp
}

type RepoSummary struct {
	Repository           string    `json:"repository"`
	PRCount              int64     `json:"pr_count"`
	AverageTimeBetweenPR *float64  `json:"average_time_between_pr"`
	LastPRDate           time.Time `json:"last_pr_date"`
}

type RepoListResponse struct {
	Repositories []RepoSummary `json:"repositories"`
	MinCount     int           `json:"min_count"`
}

func ToRepoListResponse(summaries []model.RepoPRSummary) *RepoListResponse {
	repos := make([]RepoSummary, 0, len(summaries))
	for _, s := range summaries {
		r := RepoSummary{
			Repository: s.Repo,
			PRCount:    s.PRCount,
			LastPRDate: s.LastPRAt,
		}
		if avg, ok := s.Average(); ok {
			r.AverageTimeBetweenPR = minutes(avg)
		}
		repos = append(repos, r)
	}
	return &RepoListResponse{Repositories: repos, MinCount: 2}
}

type DeadLetterResponse struct {
	ID        int64     `json:"id,string"`
	MessageID string    `json:"message_id"`
	EventID   string    `json:"event_id,omitempty"`
	EventType string    `json:"event_type,omitempty"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

type DeadLetterListResponse struct {
	DeadLetters []DeadLetterResponse `json:"dead_letters"`
}

func ToDeadLetterListResponse(dls []model.DeadLetter) *DeadLetterListResponse {
	out := make([]DeadLetterResponse, 0, len(dls))
	for _, dl := range dls {
		out = append(out, DeadLetterResponse{
			ID:        dl.ID,
			MessageID: dl.MessageID,
			EventID:   dl.EventID,
			EventType: dl.EventType,
			Attempts:  dl.Attempts,
			Error:     dl.Error,
			CreatedAt: dl.CreatedAt,
		})
	}
	return &DeadLetterListResponse{DeadLetters: out}
}

func typeCounts(counts map[model.EventType]int64) map[string]int64 {
	out := make(map[string]int64, len(model.TrackedEventTypes))
	for _, t := range model.TrackedEventTypes {
		out[string(t)] = counts[t]
	}
	return out
}

// minutes renders d in minutes rounded to two decimals.
func minutes(d time.Duration) *float64 {
	m := math.Round(d.Minutes()*100) / 100
	return &m
}
