package store

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"basegraph.app/pulse/core/db/sqlc"
	"basegraph.app/pulse/internal/model"
)

// DefaultPageSize bounds a single RangeQuery page when the caller does not set a limit.
const DefaultPageSize int32 = 500

type eventStore struct {
	queries *sqlc.Queries
}

func newEventStore(queries *sqlc.Queries) EventStore {
	return &eventStore{queries: queries}
}

func (s *eventStore) Upsert(ctx context.Context, event *model.NormalizedEvent) (bool, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return false, fmt.Errorf("encoding payload for event %s: %w", event.EventID, err)
	}
	if event.Payload == nil {
		payload = []byte("{}")
	}

	_, err = s.queries.InsertEventIfAbsent(ctx, sqlc.InsertEventIfAbsentParams{
		EventID:     event.EventID,
		EventType:   string(event.Type),
		RepoName:    event.Repo,
		ActorLogin:  event.ActorLogin,
		Payload:     payload,
		CreatedAt:   toTimestamp(event.CreatedAt),
		ProcessedAt: toTimestamp(event.ProcessedAt),
	})
	if err != nil {
		// ON CONFLICT DO NOTHING returns no row for an existing event ID.
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *eventStore) GetByID(ctx context.Context, eventID string) (*model.NormalizedEvent, error) {
	row, err := s.queries.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toEventModel(row)
}

func (s *eventStore) RangeQuery(ctx context.Context, q RangeQuery) (RangePage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	params := sqlc.ListEventsInRangeParams{
		EventType:      string(q.Type),
		StartAt:        toTimestamp(q.Start),
		EndAt:          toTimestamp(q.End),
		AfterCreatedAt: toTimestamp(q.Start),
		AfterEventID:   "",
		PageSize:       limit,
	}
	if q.After != nil {
		params.AfterCreatedAt = toTimestamp(q.After.CreatedAt)
		params.AfterEventID = q.After.EventID
	}

	rows, err := s.queries.ListEventsInRange(ctx, params)
	if err != nil {
		return RangePage{}, err
	}

	page := RangePage{Events: make([]model.NormalizedEvent, 0, len(rows))}
	for _, row := range rows {
		event, err := toEventModel(row)
		if err != nil {
			return RangePage{}, err
		}
		page.Events = append(page.Events, *event)
	}

	if int32(len(rows)) == limit {
		last := page.Events[len(page.Events)-1]
		page.Next = &RangeCursor{CreatedAt: last.CreatedAt, EventID: last.EventID}
	}
	return page, nil
}

func toEventModel(row sqlc.Event) (*model.NormalizedEvent, error) {
	var payload map[string]any
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decoding payload for event %s: %w", row.EventID, err)
		}
	}

	return &model.NormalizedEvent{
		EventID:     row.EventID,
		Type:        model.EventType(row.EventType),
		Repo:        row.RepoName,
		ActorLogin:  row.ActorLogin,
		Payload:     payload,
		CreatedAt:   row.CreatedAt.Time.UTC(),
		ProcessedAt: row.ProcessedAt.Time.UTC(),
	}, nil
}
