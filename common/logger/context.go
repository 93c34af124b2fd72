package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment so every log line written while handling an
// event carries its identifiers without threading them through call signatures.
type LogFields struct {
	EventID   *string // GitHub event ID
	MessageID *string // Redis stream message ID
	Repo      *string // owner/name of the event's repository
	EventType *string // WatchEvent, PullRequestEvent, IssuesEvent
	CycleID   *int64  // poll cycle ID
	Component string  // Component name (OTel semantic convention style, e.g., "pulse.worker.processor")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.EventID != nil {
		result.EventID = new.EventID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Repo != nil {
		result.Repo = new.Repo
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.CycleID != nil {
		result.CycleID = new.CycleID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{EventID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
