/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package eventtrace

import (
	"context"

	"github.com/chainguard-dev/clog"
)

// defaultTracer is used when no tracer was put on the context.
var defaultTracer = New(WithHandlers(LogHandler{}))

// NewDefaultTracer creates a tracer that logs finished events to clog.
func NewDefaultTracer(opts ...Option) *Tracer {
	return New(append([]Option{WithHandlers(LogHandler{})}, opts...)...)
}

// LogHandler logs finished events to the logger carried by the context.
// It is the fallback sink; structured export lives in the sinks packages.
type LogHandler struct{}

var _ Handler = LogHandler{}

func (LogHandler) OnStart(context.Context, Snapshot) {}

func (LogHandler) OnLog(ctx context.Context, ev Snapshot, entry LogEntry) {
	clog.FromContext(ctx).With("event_id", ev.ID).
		With("correlation_id", ev.CorrelationID).
		Debug(entry.Message)
}

func (LogHandler) OnEnd(ctx context.Context, ev Snapshot) {
	logger(ctx, ev).Info("Traced call completed")
}

func (LogHandler) OnError(ctx context.Context, ev Snapshot, info ErrorInfo) {
	logger(ctx, ev).With("error", info.Message).
		With("error_type", info.Type).
		Warn("Traced call failed")
}

func logger(ctx context.Context, ev Snapshot) *clog.Logger {
	return clog.FromContext(ctx).With(
		"event_id", ev.ID,
		"trace_type", string(ev.TraceType),
		"trace_name", ev.TraceName,
		"correlation_id", ev.CorrelationID,
		"duration_ms", ev.Duration().Milliseconds(),
		"partial", ev.Partial,
	)
}
