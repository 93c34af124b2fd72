package model

import "time"

// RepoPRSummary is the running pull request summary for one repository.
// It is maintained one observation at a time and never recomputed from history.
type RepoPRSummary struct {
	FirstPRAt   time.Time     `json:"first_pr_at"`
	LastPRAt    time.Time     `json:"last_pr_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Repo        string        `json:"repo"`
	PRCount     int64         `json:"pr_count"`
	SumOfDeltas time.Duration `json:"sum_of_deltas"`
	Version     int64         `json:"version"`
}

// NewRepoPRSummary starts a summary from the first observed pull request.
func NewRepoPRSummary(repo string, at time.Time) RepoPRSummary {
	at = at.UTC()
	return RepoPRSummary{
		Repo:      repo,
		PRCount:   1,
		FirstPRAt: at,
		LastPRAt:  at,
	}
}

// Observe folds one more pull request into the summary and returns the result.
// A pull request older than LastPRAt contributes a zero delta; clamped reports that case.
func (s RepoPRSummary) Observe(at time.Time) (next RepoPRSummary, clamped bool) {
	at = at.UTC()
	delta := at.Sub(s.LastPRAt)
	if delta < 0 {
		delta = 0
		clamped = true
	}

	next = s
	next.SumOfDeltas += delta
	next.PRCount++
	next.LastPRAt = at
	return next, clamped
}

// Average is SumOfDeltas/(PRCount-1); ok is false with fewer than two pull requests.
func (s RepoPRSummary) Average() (avg time.Duration, ok bool) {
	if s.PRCount < 2 {
		return 0, false
	}
	return s.SumOfDeltas / time.Duration(s.PRCount-1), true
}
