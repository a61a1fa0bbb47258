/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package promsink exposes traced events as Prometheus metrics.
package promsink

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Handler implements eventtrace.Handler with Prometheus metrics
type Handler struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	logs     *prometheus.CounterVec
}

var _ eventtrace.Handler = (*Handler)(nil)

// New registers the metrics on reg. Registering twice on the same registry
// panics, as promauto does.
func New(reg prometheus.Registerer) *Handler {
	factory := promauto.With(reg)
	return &Handler{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracecore_events_total",
				Help: "Total number of finished traced events",
			},
			[]string{"trace_type", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracecore_event_duration_seconds",
				Help:    "Duration of traced events",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"trace_type"},
		),
		logs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracecore_handler_logs_total",
				Help: "Total number of log entries emitted by traced events",
			},
			[]string{"trace_type"},
		),
	}
}

// OnStart implements eventtrace.Handler
func (h *Handler) OnStart(context.Context, eventtrace.Snapshot) {}

// OnLog implements eventtrace.Handler
func (h *Handler) OnLog(_ context.Context, ev eventtrace.Snapshot, _ eventtrace.LogEntry) {
	h.logs.WithLabelValues(string(ev.TraceType)).Inc()
}

// OnEnd implements eventtrace.Handler
func (h *Handler) OnEnd(_ context.Context, ev eventtrace.Snapshot) {
	h.observe(ev)
}

// OnError implements eventtrace.Handler
func (h *Handler) OnError(_ context.Context, ev eventtrace.Snapshot, _ eventtrace.ErrorInfo) {
	h.observe(ev)
}

func (h *Handler) observe(ev eventtrace.Snapshot) {
	h.events.With(prometheus.Labels{
		"trace_type": string(ev.TraceType),
		"status":     string(ev.Status),
	}).Inc()
	h.duration.WithLabelValues(string(ev.TraceType)).Observe(ev.Duration().Seconds())
}
