package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/pulse/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a compare-and-swap write lost to a concurrent writer
var ErrConflict = errors.New("concurrent update conflict")

// EventStore defines the contract for normalized event storage
type EventStore interface {
	// Upsert writes the event if its ID is absent. inserted is false when a row
	// with the same event ID already existed; the existing row is left untouched.
	Upsert(ctx context.Context, event *model.NormalizedEvent) (inserted bool, err error)
	GetByID(ctx context.Context, eventID string) (*model.NormalizedEvent, error)
	// RangeQuery returns one page of events of a type with created_at in [Start, End],
	// ordered by (created_at, event_id). Callers must follow Next until it is nil.
	RangeQuery(ctx context.Context, q RangeQuery) (RangePage, error)
}

// PRSummaryStore defines the contract for running pull request summaries
type PRSummaryStore interface {
	Get(ctx context.Context, repo string) (*model.RepoPRSummary, error)
	// Create inserts a new summary. created is false when the repo already has one.
	Create(ctx context.Context, summary *model.RepoPRSummary) (created bool, err error)
	// CompareAndSwap replaces the summary only if its stored version still equals
	// summary.Version. It returns ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, summary *model.RepoPRSummary) error
	ListWithMinCount(ctx context.Context, minCount int64) ([]model.RepoPRSummary, error)
}

// PollStateStore defines the contract for the poller's persisted cursor
type PollStateStore interface {
	Get(ctx context.Context, stream string) (*model.PollState, error)
	Save(ctx context.Context, state *model.PollState) error
}

// DeadLetterStore defines the contract for operator-inspectable failed messages
type DeadLetterStore interface {
	Create(ctx context.Context, dl *model.DeadLetter) error
	List(ctx context.Context, limit int32) ([]model.DeadLetter, error)
}

// RangeCursor marks the last row of a page in (created_at, event_id) order.
type RangeCursor struct {
	CreatedAt time.Time
	EventID   string
}

type RangeQuery struct {
	Start time.Time
	End   time.Time
	After *RangeCursor
	Type  model.EventType
	Limit int32
}

type RangePage struct {
	Next   *RangeCursor
	Events []model.NormalizedEvent
}
