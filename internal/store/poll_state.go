package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/pulse/core/db/sqlc"
	"basegraph.app/pulse/internal/model"
	"github.com/jackc/pgx/v5"
)

type pollStateStore struct {
	queries *sqlc.Queries
}

func newPollStateStore(queries *sqlc.Queries) PollStateStore {
	return &pollStateStore{queries: queries}
}

func (s *pollStateStore) Get(ctx context.Context, stream string) (*model.PollState, error) {
	row, err := s.queries.GetPollState(ctx, stream)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &model.PollState{
		Stream:       row.Stream,
		CacheToken:   row.CacheToken,
		LastEventID:  row.LastEventID,
		PollInterval: time.Duration(row.PollIntervalSeconds) * time.Second,
		PolledAt:     row.PolledAt.Time.UTC(),
	}, nil
}

func (s *pollStateStore) Save(ctx context.Context, state *model.PollState) error {
	return s.queries.UpsertPollState(ctx, sqlc.UpsertPollStateParams{
		Stream:              state.Stream,
		CacheToken:          state.CacheToken,
		LastEventID:         state.LastEventID,
		PollIntervalSeconds: int32(state.PollInterval / time.Second),
		PolledAt:            toTimestamp(state.PolledAt),
	})
}
