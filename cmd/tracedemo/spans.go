/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"sync/atomic"

	"github.com/chainguard-dev/clog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanLogger logs every ended span at debug level.
type spanLogger struct {
	logger *clog.Logger
	ended  atomic.Int64
}

var _ sdktrace.SpanProcessor = (*spanLogger)(nil)

func newSpanLogger(logger *clog.Logger) *spanLogger {
	return &spanLogger{logger: logger}
}

func (*spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *spanLogger) OnEnd(s sdktrace.ReadOnlySpan) {
	p.ended.Add(1)
	p.logger.With("span", s.Name()).
		With("trace_id", s.SpanContext().TraceID().String()).
		With("parent_span_id", s.Parent().SpanID().String()).
		With("duration", s.EndTime().Sub(s.StartTime()).String()).
		Debug("Recorded span")
}

func (*spanLogger) Shutdown(context.Context) error   { return nil }
func (*spanLogger) ForceFlush(context.Context) error { return nil }

// Ended returns how many spans have ended.
func (p *spanLogger) Ended() int64 {
	return p.ended.Load()
}
