package poller_test

import (
	"context"

	"basegraph.app/pulse/internal/github"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/store"
)

type mockSource struct {
	fetchFn func(ctx context.Context, cacheToken string) (github.FetchResult, error)
	tokens  []string
}

func (m *mockSource) Fetch(ctx context.Context, cacheToken string) (github.FetchResult, error) {
	m.tokens = append(m.tokens, cacheToken)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, cacheToken)
	}
	return github.FetchResult{Status: github.StatusNotModified}, nil
}

type mockPollStateStore struct {
	state   *model.PollState
	getErr  error
	saveErr error
	saves   int
}

func (m *mockPollStateStore) Get(_ context.Context, _ string) (*model.PollState, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.state == nil {
		return nil, store.ErrNotFound
	}
	s := *m.state
	return &s, nil
}

func (m *mockPollStateStore) Save(_ context.Context, state *model.PollState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	s := *state
	m.state = &s
	return nil
}

type mockProducer struct {
	enqueueErr error
	batches    [][]model.RawEvent
	traceIDs   []string
}

func (m *mockProducer) EnqueueAll(_ context.Context, events []model.RawEvent, traceID string) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.batches = append(m.batches, events)
	m.traceIDs = append(m.traceIDs, traceID)
	return nil
}

func (m *mockProducer) Close() error { return nil }

func (m *mockProducer) enqueuedIDs() []string {
	var out []string
	for _, b := range m.batches {
		for _, e := range b {
			out = append(out, e.ID)
		}
	}
	return out
}

type memoryFailureCounter struct {
	counts map[string]int64
}

func (m *memoryFailureCounter) Increment(_ context.Context, stream string) (int64, error) {
	m.counts[stream]++
	return m.counts[stream], nil
}

func (m *memoryFailureCounter) Reset(_ context.Context, stream string) error {
	delete(m.counts, stream)
	return nil
}
