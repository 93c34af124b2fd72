package queue

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/internal/model"
)

// Message is one delivery of a RawEvent from the ingestion stream.
type Message struct {
	ID        string
	EventID   string
	EventType string
	TraceID   string
	LastError string
	Body      []byte
	Event     model.RawEvent
	Attempt   int
	Raw       redis.XMessage
}

// EncodeEvent builds the stream fields for the first delivery of event.
func EncodeEvent(event model.RawEvent, traceID string) (map[string]any, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", event.ID, err)
	}
	values := map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"body":       string(body),
		"attempt":    1,
	}
	if traceID != "" {
		values["trace_id"] = traceID
	}
	return values, nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	body, err := parseString(msg.Values, "body")
	if err != nil {
		return Message{}, err
	}

	var event model.RawEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return Message{}, fmt.Errorf("decoding body: %w", err)
	}
	if event.ID == "" {
		return Message{}, fmt.Errorf("body has no event id")
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt <= 0 {
		attempt = 1
	}

	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}
	lastError, err := parseOptionalString(msg.Values, "last_error")
	if err != nil {
		return Message{}, err
	}

	return Message{
		ID:        msg.ID,
		EventID:   event.ID,
		EventType: string(event.Type),
		TraceID:   traceID,
		LastError: lastError,
		Body:      []byte(body),
		Event:     event,
		Attempt:   attempt,
		Raw:       msg,
	}, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	str := fmt.Sprint(raw)
	num, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

// messageValues rebuilds stream fields for a redelivery or dead letter of msg.
func messageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		"attempt": attempt,
	}

	if len(msg.Body) > 0 {
		values["body"] = string(msg.Body)
	} else if raw, ok := msg.Raw.Values["body"]; ok {
		values["body"] = fmt.Sprint(raw)
	}
	if msg.EventID != "" {
		values["event_id"] = msg.EventID
	}
	if msg.EventType != "" {
		values["event_type"] = msg.EventType
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}

	return values
}
