package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/pulse/core/db/sqlc"
	"basegraph.app/pulse/internal/model"
	"github.com/jackc/pgx/v5"
)

type prSummaryStore struct {
	queries *sqlc.Queries
}

func newPRSummaryStore(queries *sqlc.Queries) PRSummaryStore {
	return &prSummaryStore{queries: queries}
}

func (s *prSummaryStore) Get(ctx context.Context, repo string) (*model.RepoPRSummary, error) {
	row, err := s.queries.GetRepoPRSummary(ctx, repo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toPRSummaryModel(row), nil
}

func (s *prSummaryStore) Create(ctx context.Context, summary *model.RepoPRSummary) (bool, error) {
	n, err := s.queries.CreateRepoPRSummary(ctx, sqlc.CreateRepoPRSummaryParams{
		RepoName:      summary.Repo,
		PrCount:       summary.PRCount,
		FirstPrAt:     toTimestamp(summary.FirstPRAt),
		LastPrAt:      toTimestamp(summary.LastPRAt),
		SumOfDeltasMs: summary.SumOfDeltas.Milliseconds(),
		AverageMs:     averageMillis(summary),
		UpdatedAt:     toTimestamp(summary.UpdatedAt),
	})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	summary.Version = 1
	return true, nil
}

func (s *prSummaryStore) CompareAndSwap(ctx context.Context, summary *model.RepoPRSummary) error {
	n, err := s.queries.UpdateRepoPRSummaryIfVersion(ctx, sqlc.UpdateRepoPRSummaryIfVersionParams{
		RepoName:      summary.Repo,
		PrCount:       summary.PRCount,
		FirstPrAt:     toTimestamp(summary.FirstPRAt),
		LastPrAt:      toTimestamp(summary.LastPRAt),
		SumOfDeltasMs: summary.SumOfDeltas.Milliseconds(),
		AverageMs:     averageMillis(summary),
		UpdatedAt:     toTimestamp(summary.UpdatedAt),
		Version:       summary.Version,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	summary.Version++
	return nil
}

func (s *prSummaryStore) ListWithMinCount(ctx context.Context, minCount int64) ([]model.RepoPRSummary, error) {
	rows, err := s.queries.ListRepoPRSummariesWithMinCount(ctx, minCount)
	if err != nil {
		return nil, err
	}
	result := make([]model.RepoPRSummary, 0, len(rows))
	for _, row := range rows {
		result = append(result, *toPRSummaryModel(row))
	}
	return result, nil
}

func averageMillis(summary *model.RepoPRSummary) *int64 {
	avg, ok := summary.Average()
	if !ok {
		return nil
	}
	ms := avg.Milliseconds()
	return &ms
}

func toPRSummaryModel(row sqlc.RepoPrSummary) *model.RepoPRSummary {
	return &model.RepoPRSummary{
		Repo:        row.RepoName,
		PRCount:     row.PrCount,
		FirstPRAt:   row.FirstPrAt.Time.UTC(),
		LastPRAt:    row.LastPrAt.Time.UTC(),
		SumOfDeltas: time.Duration(row.SumOfDeltasMs) * time.Millisecond,
		Version:     row.Version,
		UpdatedAt:   row.UpdatedAt.Time.UTC(),
	}
}
