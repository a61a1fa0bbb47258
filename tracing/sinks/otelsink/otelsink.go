/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package otelsink exports traced events as OpenTelemetry spans.
//
// Every event becomes one span, started and ended at the event's own
// timestamps. An event whose parent is still open becomes a child of the
// parent's span; otherwise the span joins whatever span the context carries.
// Export and batching are left to the registered TracerProvider.
package otelsink

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/internal/otelattr"
)

// ScopeName is the instrumentation scope of the spans.
const ScopeName = "chainguard.dev/tracecore"

// Span attribute keys.
const (
	AttrEventID       = "tracecore.event.id"
	AttrTraceType     = "tracecore.trace_type"
	AttrCorrelationID = "tracecore.correlation_id"
	AttrPartial       = "tracecore.partial"
	attrPrefix        = "tracecore.attr."
)

// Handler is an eventtrace.Handler that maps events to spans.
type Handler struct {
	tracer trace.Tracer

	// spans holds the open span of every event, keyed by event id.
	spans sync.Map
}

var _ eventtrace.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) {
		h.tracer = tp.Tracer(ScopeName, trace.WithInstrumentationVersion("1.0.0"))
	}
}

// New creates a Handler. Without options it uses the global TracerProvider.
func New(opts ...Option) *Handler {
	h := &Handler{
		tracer: otel.Tracer(ScopeName, trace.WithInstrumentationVersion("1.0.0")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnStart implements eventtrace.Handler
func (h *Handler) OnStart(ctx context.Context, ev eventtrace.Snapshot) {
	h.spans.Store(ev.ID, h.start(ctx, ev))
}

// OnLog implements eventtrace.Handler
func (h *Handler) OnLog(_ context.Context, ev eventtrace.Snapshot, entry eventtrace.LogEntry) {
	if span, ok := h.open(ev.ID); ok {
		span.AddEvent(entry.Message, trace.WithTimestamp(entry.Time))
	}
}

// OnEnd implements eventtrace.Handler
func (h *Handler) OnEnd(ctx context.Context, ev eventtrace.Snapshot) {
	span := h.take(ctx, ev)
	span.SetStatus(codes.Ok, "")
	h.end(span, ev)
}

// OnError implements eventtrace.Handler
func (h *Handler) OnError(ctx context.Context, ev eventtrace.Snapshot, info eventtrace.ErrorInfo) {
	span := h.take(ctx, ev)
	if info.Err != nil {
		span.RecordError(info.Err, trace.WithTimestamp(ev.EndTime))
	}
	span.SetStatus(codes.Error, info.Message)
	h.end(span, ev)
}

// Open reports how many spans are waiting for their event to finish.
func (h *Handler) Open() int {
	n := 0
	h.spans.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

func (h *Handler) start(ctx context.Context, ev eventtrace.Snapshot) trace.Span {
	if ev.ParentID != "" {
		if parent, ok := h.open(ev.ParentID); ok {
			ctx = trace.ContextWithSpan(ctx, parent)
		}
	}
	_, span := h.tracer.Start(ctx, ev.TraceName,
		trace.WithTimestamp(ev.StartTime),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrEventID, ev.ID),
			attribute.String(AttrTraceType, string(ev.TraceType)),
			attribute.String(AttrCorrelationID, ev.CorrelationID),
		),
		trace.WithAttributes(otelattr.FromMap(attrPrefix, ev.AllAttributes())...),
	)
	return span
}

func (h *Handler) open(id string) (trace.Span, bool) {
	v, ok := h.spans.Load(id)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

// take removes the open span of ev. Events that started before the handler
// was registered get a span on the spot.
func (h *Handler) take(ctx context.Context, ev eventtrace.Snapshot) trace.Span {
	if v, ok := h.spans.LoadAndDelete(ev.ID); ok {
		return v.(trace.Span)
	}
	return h.start(ctx, ev)
}

func (h *Handler) end(span trace.Span, ev eventtrace.Snapshot) {
	span.SetAttributes(otelattr.FromMap(attrPrefix, ev.Attributes)...)
	span.SetAttributes(attribute.Bool(AttrPartial, ev.Partial))
	span.End(trace.WithTimestamp(ev.EndTime))
}
