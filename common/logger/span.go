package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "basegraph.app/pulse"

// Span attribute keys shared by the poller and the worker.
const (
	AttrCycleID   = attribute.Key("pulse.poll.cycle_id")
	AttrMessageID = attribute.Key("pulse.message.id")
	AttrAttempt   = attribute.Key("pulse.message.attempt")
	AttrEventID   = attribute.Key("pulse.event.id")
	AttrEventType = attribute.Key("pulse.event.type")
)

// SpanContext pairs a span with the context that carries it.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan creates a child of the span in ctx, or a root span.
//
//	sc := logger.StartSpan(ctx, "poller.poll")
//	defer sc.End()
//	ctx = sc.Context()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// StartSpanFromTraceID continues the trace a message was enqueued under.
// The poller writes its trace ID into every stream entry; the worker resumes it here.
// An empty or malformed traceID starts a new trace.
func StartSpanFromTraceID(ctx context.Context, traceIDStr string, name string, opts ...trace.SpanStartOption) *SpanContext {
	traceID, err := trace.TraceIDFromHex(traceIDStr)
	if traceIDStr == "" || err != nil {
		return StartSpan(ctx, name, opts...)
	}

	remote := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	opts = append(opts, trace.WithLinks(trace.Link{SpanContext: remote}))
	return StartSpan(trace.ContextWithRemoteSpanContext(ctx, remote), name, opts...)
}

func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

// TraceID returns the hex trace ID to propagate, or "" when tracing is off.
func (sc *SpanContext) TraceID() string {
	if sc.span == nil {
		return ""
	}
	if spanCtx := sc.span.SpanContext(); spanCtx.HasTraceID() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func (sc *SpanContext) SetAttributes(attrs ...attribute.KeyValue) {
	if sc.span != nil {
		sc.span.SetAttributes(attrs...)
	}
}

// Fail records err and marks the span as errored.
func (sc *SpanContext) Fail(err error) {
	if sc.span == nil || err == nil {
		return
	}
	sc.span.RecordError(err)
	sc.span.SetStatus(codes.Error, err.Error())
}

// End completes the span. Repeated calls are no-ops.
func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}
