package model

import (
	"time"

	json "github.com/goccy/go-json"
)

// DeadLetter records a queue message that exhausted its delivery attempts.
type DeadLetter struct {
	CreatedAt time.Time       `json:"created_at"`
	Body      json.RawMessage `json:"body,omitempty"`
	MessageID string          `json:"message_id"`
	EventID   string          `json:"event_id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Error     string          `json:"error"`
	ID        int64           `json:"id"`
	Attempts  int             `json:"attempts"`
}
