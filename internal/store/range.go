package store

import (
	"context"
	"fmt"

	"basegraph.app/pulse/internal/model"
)

// DrainRange runs q against s page by page and calls fn for every event in order.
// A single page never bounds the answer, so every count and timeline goes through here.
func DrainRange(ctx context.Context, s EventStore, q RangeQuery, fn func(model.NormalizedEvent) error) error {
	for {
		page, err := s.RangeQuery(ctx, q)
		if err != nil {
			return fmt.Errorf("range query %s: %w", q.Type, err)
		}

		for _, event := range page.Events {
			if err := fn(event); err != nil {
				return err
			}
		}

		if page.Next == nil {
			return nil
		}
		if q.After != nil && *page.Next == *q.After {
			return fmt.Errorf("range query %s: cursor did not advance", q.Type)
		}
		q.After = page.Next
	}
}
