package model

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// ErrUnsupportedEventType is returned when an event's type is outside the tracked set.
var ErrUnsupportedEventType = errors.New("unsupported event type")

// EventType is the GitHub event type. Only the tracked set is ever persisted.
type EventType string

const (
	EventTypeWatch       EventType = "WatchEvent"
	EventTypePullRequest EventType = "PullRequestEvent"
	EventTypeIssues      EventType = "IssuesEvent"
)

// TrackedEventTypes lists every event type the pipeline keeps, in response order.
var TrackedEventTypes = []EventType{
	EventTypeWatch,
	EventTypePullRequest,
	EventTypeIssues,
}

func (t EventType) IsTracked() bool {
	switch t {
	case EventTypeWatch, EventTypePullRequest, EventTypeIssues:
		return true
	default:
		return false
	}
}

func (t EventType) String() string {
	return string(t)
}

type Actor struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type Repo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RawEvent is an event as delivered by the GitHub events feed.
// It is the body of every ingestion queue message and is never persisted as-is.
type RawEvent struct {
	CreatedAt time.Time       `json:"created_at"`
	Actor     Actor           `json:"actor"`
	Repo      Repo            `json:"repo"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
}

// Payload is the typed, minimal projection of a tracked event's payload.
// Exactly one implementation exists per tracked EventType.
type Payload interface {
	EventType() EventType
	Minimal() map[string]any
}

type WatchPayload struct {
	Action string `json:"action"`
}

func (WatchPayload) EventType() EventType { return EventTypeWatch }

func (p WatchPayload) Minimal() map[string]any {
	return map[string]any{"action": p.Action}
}

type PullRequestPayload struct {
	Action string `json:"action"`
	Number int    `json:"number"`
}

func (PullRequestPayload) EventType() EventType { return EventTypePullRequest }

func (p PullRequestPayload) Minimal() map[string]any {
	return map[string]any{"action": p.Action, "number": p.Number}
}

type IssuesPayload struct {
	Action string `json:"action"`
	Number int    `json:"number"`
}

func (IssuesPayload) EventType() EventType { return EventTypeIssues }

func (p IssuesPayload) Minimal() map[string]any {
	return map[string]any{"action": p.Action, "number": p.Number}
}

// DecodePayload decodes the raw GitHub payload into the variant for t.
// An empty payload decodes to the zero value of the variant.
func DecodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	empty := len(raw) == 0 || string(raw) == "null"

	switch t {
	case EventTypeWatch:
		var p WatchPayload
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decoding %s payload: %w", t, err)
			}
		}
		return p, nil
	case EventTypePullRequest:
		var p PullRequestPayload
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decoding %s payload: %w", t, err)
			}
		}
		return p, nil
	case EventTypeIssues:
		var wire struct {
			Action string `json:"action"`
			Issue  struct {
				Number int `json:"number"`
			} `json:"issue"`
		}
		if !empty {
			if err := json.Unmarshal(raw, &wire); err != nil {
				return nil, fmt.Errorf("decoding %s payload: %w", t, err)
			}
		}
		return IssuesPayload{Action: wire.Action, Number: wire.Issue.Number}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEventType, t)
	}
}

// NormalizedEvent is the persisted, deduplicated form of a tracked event.
type NormalizedEvent struct {
	CreatedAt   time.Time      `json:"created_at"`
	ProcessedAt time.Time      `json:"processed_at"`
	Payload     map[string]any `json:"payload"`
	EventID     string         `json:"event_id"`
	Type        EventType      `json:"type"`
	Repo        string         `json:"repo"`
	ActorLogin  string         `json:"actor_login"`
}

// Action returns the payload action ("opened", "started", ...) or "".
func (e NormalizedEvent) Action() string {
	if a, ok := e.Payload["action"].(string); ok {
		return a
	}
	return ""
}

// Normalize validates raw and projects it into a NormalizedEvent.
func Normalize(raw RawEvent, processedAt time.Time) (NormalizedEvent, Payload, error) {
	if raw.ID == "" {
		return NormalizedEvent{}, nil, errors.New("event id is required")
	}
	if !raw.Type.IsTracked() {
		return NormalizedEvent{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedEventType, raw.Type)
	}
	if raw.CreatedAt.IsZero() {
		return NormalizedEvent{}, nil, fmt.Errorf("event %s has no created_at", raw.ID)
	}

	payload, err := DecodePayload(raw.Type, raw.Payload)
	if err != nil {
		return NormalizedEvent{}, nil, err
	}

	repo := raw.Repo.Name
	if repo == "" {
		repo = "unknown"
	}

	return NormalizedEvent{
		EventID:     raw.ID,
		Type:        raw.Type,
		Repo:        repo,
		ActorLogin:  raw.Actor.Login,
		CreatedAt:   raw.CreatedAt.UTC(),
		ProcessedAt: processedAt.UTC(),
		Payload:     payload.Minimal(),
	}, payload, nil
}
