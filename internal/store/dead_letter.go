package store

import (
	"context"

	json "github.com/goccy/go-json"

	"basegraph.app/pulse/core/db/sqlc"
	"basegraph.app/pulse/internal/model"
)

type deadLetterStore struct {
	queries *sqlc.Queries
}

func newDeadLetterStore(queries *sqlc.Queries) DeadLetterStore {
	return &deadLetterStore{queries: queries}
}

func (s *deadLetterStore) Create(ctx context.Context, dl *model.DeadLetter) error {
	var body []byte
	if len(dl.Body) > 0 && json.Valid(dl.Body) {
		body = []byte(dl.Body)
	}

	return s.queries.CreateDeadLetter(ctx, sqlc.CreateDeadLetterParams{
		ID:        dl.ID,
		MessageID: dl.MessageID,
		EventID:   dl.EventID,
		EventType: dl.EventType,
		Attempts:  int32(dl.Attempts),
		Error:     dl.Error,
		Body:      body,
		CreatedAt: toTimestamp(dl.CreatedAt),
	})
}

func (s *deadLetterStore) List(ctx context.Context, limit int32) ([]model.DeadLetter, error) {
	rows, err := s.queries.ListDeadLetters(ctx, limit)
	if err != nil {
		return nil, err
	}
	result := make([]model.DeadLetter, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.DeadLetter{
			ID:        row.ID,
			MessageID: row.MessageID,
			EventID:   row.EventID,
			EventType: row.EventType,
			Attempts:  int(row.Attempts),
			Error:     row.Error,
			Body:      row.Body,
			CreatedAt: row.CreatedAt.Time.UTC(),
		})
	}
	return result, nil
}
