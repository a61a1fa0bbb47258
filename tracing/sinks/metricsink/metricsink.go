/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metricsink

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// MeterName is the default meter of the handler.
const MeterName = "chainguard.dev/tracecore"

// AttributeEnricher enriches metric attributes with additional context.
// The enricher receives the base attributes (trace type, trace name, status)
// and returns an enriched set.
type AttributeEnricher func(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue

// Handler provides OpenTelemetry metrics for traced events: a counter of
// finished events, their duration and the first item latency of streams.
// Instruments that fail to initialize degrade to no-ops.
type Handler struct {
	events           metric.Int64Counter
	logs             metric.Int64Counter
	duration         metric.Float64Histogram
	firstItemLatency metric.Float64Histogram
	attrEnricher     AttributeEnricher
}

var _ eventtrace.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*options)

type options struct {
	provider metric.MeterProvider
	enricher AttributeEnricher
}

// WithMeterProvider takes instruments from mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.provider = mp
	}
}

// WithAttributeEnricher sets the enricher called before recording each metric.
func WithAttributeEnricher(enricher AttributeEnricher) Option {
	return func(o *options) {
		o.enricher = enricher
	}
}

// New creates the metrics handler.
func New(opts ...Option) *Handler {
	o := options{provider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	meter := o.provider.Meter(MeterName, metric.WithInstrumentationVersion("1.0.0"))

	events, err := meter.Int64Counter("tracecore.events",
		metric.WithDescription("The number of finished traced events"),
		metric.WithUnit("{events}"))
	if err != nil {
		slog.Warn("Failed to create events counter, metrics will be disabled", "error", err, "meter", MeterName)
		events = noop.Int64Counter{}
	}

	logs, err := meter.Int64Counter("tracecore.event.logs",
		metric.WithDescription("The number of log entries emitted by traced events"),
		metric.WithUnit("{entries}"))
	if err != nil {
		slog.Warn("Failed to create event log counter, metrics will be disabled", "error", err, "meter", MeterName)
		logs = noop.Int64Counter{}
	}

	duration, err := meter.Float64Histogram("tracecore.event.duration",
		metric.WithDescription("The duration of traced events"),
		metric.WithUnit("ms"))
	if err != nil {
		slog.Warn("Failed to create duration histogram, metrics will be disabled", "error", err, "meter", MeterName)
		duration = noop.Float64Histogram{}
	}

	firstItemLatency, err := meter.Float64Histogram("tracecore.stream.first_item_latency",
		metric.WithDescription("The time until a traced sequence produced its first item"),
		metric.WithUnit("ms"))
	if err != nil {
		slog.Warn("Failed to create first item latency histogram, metrics will be disabled", "error", err, "meter", MeterName)
		firstItemLatency = noop.Float64Histogram{}
	}

	return &Handler{
		events:           events,
		logs:             logs,
		duration:         duration,
		firstItemLatency: firstItemLatency,
		attrEnricher:     o.enricher,
	}
}

// OnStart implements eventtrace.Handler
func (h *Handler) OnStart(context.Context, eventtrace.Snapshot) {}

// OnLog implements eventtrace.Handler
func (h *Handler) OnLog(ctx context.Context, ev eventtrace.Snapshot, _ eventtrace.LogEntry) {
	h.logs.Add(ctx, 1, metric.WithAttributes(h.attributes(ctx, ev)...))
}

// OnEnd implements eventtrace.Handler
func (h *Handler) OnEnd(ctx context.Context, ev eventtrace.Snapshot) {
	h.record(ctx, ev)
}

// OnError implements eventtrace.Handler
func (h *Handler) OnError(ctx context.Context, ev eventtrace.Snapshot, _ eventtrace.ErrorInfo) {
	h.record(ctx, ev)
}

func (h *Handler) record(ctx context.Context, ev eventtrace.Snapshot) {
	attrs := metric.WithAttributes(h.attributes(ctx, ev, attribute.String("status", string(ev.Status)))...)

	h.events.Add(ctx, 1, attrs)
	h.duration.Record(ctx, float64(ev.Duration().Microseconds())/1000, attrs)

	// Only streams that produced something have a first item latency.
	if ms, ok := ev.Attributes[eventtrace.AttrFirstItemLatency].(int64); ok && itemCount(ev) > 0 {
		h.firstItemLatency.Record(ctx, float64(ms), attrs)
	}
}

func (h *Handler) attributes(ctx context.Context, ev eventtrace.Snapshot, extra ...attribute.KeyValue) []attribute.KeyValue {
	baseAttrs := []attribute.KeyValue{
		attribute.String("trace_type", string(ev.TraceType)),
		attribute.String("trace_name", ev.TraceName),
	}
	baseAttrs = append(baseAttrs, extra...)

	if h.attrEnricher != nil {
		baseAttrs = h.attrEnricher(ctx, baseAttrs)
	}
	return baseAttrs
}

func itemCount(ev eventtrace.Snapshot) int {
	switch n := ev.Attributes[eventtrace.AttrItemCount].(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
