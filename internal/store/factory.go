package store

import (
	"basegraph.app/pulse/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Events() EventStore {
	return newEventStore(s.queries)
}

func (s *Stores) PRSummaries() PRSummaryStore {
	return newPRSummaryStore(s.queries)
}

func (s *Stores) PollStates() PollStateStore {
	return newPollStateStore(s.queries)
}

func (s *Stores) DeadLetters() DeadLetterStore {
	return newDeadLetterStore(s.queries)
}
