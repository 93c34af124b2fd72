package poller

import "basegraph.app/pulse/internal/github"

// State is a step of one poll cycle. A cycle always starts and ends in StateIdle;
// the state it passes through last before Idle is its outcome.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateApplying
	StateBackoff
	StateNoChange
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateApplying:
		return "applying"
	case StateBackoff:
		return "backoff"
	case StateNoChange:
		return "no_change"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// afterFetch maps a fetch outcome to the state the cycle moves to from StateFetching.
func afterFetch(status github.Status, err error) State {
	if err != nil {
		return StateFailed
	}
	switch status {
	case github.StatusNotModified:
		return StateNoChange
	case github.StatusRateLimited:
		return StateBackoff
	case github.StatusSuccess:
		return StateApplying
	default:
		return StateFailed
	}
}
