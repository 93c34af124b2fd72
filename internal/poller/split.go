package poller

import (
	"slices"

	"basegraph.app/pulse/internal/model"
)

// Selection is the part of one fetched page that must be enqueued.
type Selection struct {
	// Events are tracked, previously unseen events, oldest first.
	Events []model.RawEvent
	// NewestID is the ID of the newest fetched event of any type, or "" for an empty page.
	NewestID    string
	AlreadySeen int
	Untracked   int
	// Gap is true when lastSeen was set but not present in the page.
	Gap bool
}

// selectNew splits a newest-first page at lastSeen and keeps tracked events above it.
// When lastSeen is empty or absent from the page every event is taken: a page that no
// longer reaches back to the cursor may have skipped events, and redelivery is deduplicated downstream.
func selectNew(page []model.RawEvent, lastSeen string) Selection {
	var sel Selection
	if len(page) == 0 {
		return sel
	}
	sel.NewestID = page[0].ID

	fresh := page
	if lastSeen != "" {
		idx := slices.IndexFunc(page, func(e model.RawEvent) bool { return e.ID == lastSeen })
		if idx >= 0 {
			fresh = page[:idx]
			sel.AlreadySeen = len(page) - idx
		} else {
			// A stale page can make NewestID older than lastSeen. IDs are not
			// compared; the idempotent upsert absorbs the replay.
			sel.Gap = true
		}
	}

	sel.Events = make([]model.RawEvent, 0, len(fresh))
	for i := len(fresh) - 1; i >= 0; i-- {
		if !fresh[i].Type.IsTracked() {
			sel.Untracked++
			continue
		}
		sel.Events = append(sel.Events, fresh[i])
	}
	return sel
}
