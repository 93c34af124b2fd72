package model

import "time"

// PollState is the poller's cursor over one remote stream.
// LastEventID only ever advances in the feed's delivery order.
type PollState struct {
	PolledAt     time.Time     `json:"polled_at"`
	CacheToken   *string       `json:"cache_token,omitempty"`
	LastEventID  *string       `json:"last_event_id,omitempty"`
	Stream       string        `json:"stream"`
	PollInterval time.Duration `json:"poll_interval"`
}

func (s PollState) Token() string {
	if s.CacheToken == nil {
		return ""
	}
	return *s.CacheToken
}

func (s PollState) LastSeen() string {
	if s.LastEventID == nil {
		return ""
	}
	return *s.LastEventID
}
