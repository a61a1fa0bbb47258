/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package eventtrace

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/chainguard-dev/clog"
	"github.com/zoobzio/clockz"

	"chainguard.dev/tracecore/tracing/correlation"
)

// Tracer creates events and drives their lifecycle through a HandlerSet.
// A Tracer is safe for concurrent use.
type Tracer struct {
	handlers HandlerSet
	logger   *clog.Logger
	clock    clockz.Clock
	strict   bool

	handlerFailures atomic.Int64
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithHandlers registers the handlers, in order.
func WithHandlers(handlers ...Handler) Option {
	return func(t *Tracer) {
		t.handlers = t.handlers.With(handlers...)
	}
}

// WithHandlerSet replaces the handlers with set.
func WithHandlerSet(set HandlerSet) Option {
	return func(t *Tracer) {
		t.handlers = set
	}
}

// WithLogger sets the diagnostic channel used to report handler failures and
// lifecycle misuse. By default the logger carried by the context is used.
func WithLogger(logger *clog.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(clock clockz.Clock) Option {
	return func(t *Tracer) {
		t.clock = clock
	}
}

// WithStrictLifecycle makes a double close panic instead of returning
// ErrAlreadyClosed. Meant for development builds and tests.
func WithStrictLifecycle(strict bool) Option {
	return func(t *Tracer) {
		t.strict = strict
	}
}

// New creates a Tracer.
func New(opts ...Option) *Tracer {
	t := &Tracer{
		clock: clockz.RealClock,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Handlers returns the tracer's handler set.
func (t *Tracer) Handlers() HandlerSet {
	return t.handlers
}

// HandlerFailures returns the number of handler callbacks that panicked.
func (t *Tracer) HandlerFailures() int64 {
	return t.handlerFailures.Load()
}

// Begin opens an event and notifies every handler's OnStart.
//
// The returned context carries a child correlation scope (with a fresh
// correlation id when none was active) and the new event, so events begun
// from it become children of this one. The caller must close the returned
// EventContext on every exit path; work nested under the event must use the
// returned context, while the caller's own context keeps the prior scope.
func (t *Tracer) Begin(ctx context.Context, traceType TraceType, name string, startPayload any) (context.Context, *EventContext) {
	if ctx == nil {
		ctx = context.Background()
	}

	var parentID string
	if parent := EventFromContext(ctx); parent != nil {
		parentID = parent.ID()
	}

	ctx, scope := correlation.Push(ctx)

	ec := &EventContext{
		tracer: t,
		scope:  scope,
		ev: Snapshot{
			ID:               generateEventID(),
			ParentID:         parentID,
			CorrelationID:    scope.ID(),
			TraceType:        traceType,
			TraceName:        name,
			StartPayload:     startPayload,
			Attributes:       map[string]any{},
			CommonAttributes: correlation.CommonAttributes(ctx),
			Status:           StatusOpen,
			StartTime:        t.clock.Now(),
		},
	}
	ctx = context.WithValue(ctx, eventKey{}, ec)
	ec.ctx = ctx

	snap := ec.Snapshot()
	t.notify(ctx, "OnStart", &snap, func(h Handler) { h.OnStart(ctx, snap) })

	return ctx, ec
}

// diag returns the diagnostic logger.
func (t *Tracer) diag(ctx context.Context) *clog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return clog.FromContext(ctx)
}

func (t *Tracer) notify(ctx context.Context, callback string, ev *Snapshot, fn func(Handler)) {
	if n := t.handlers.notify(ctx, t.diag(ctx), callback, ev, fn); n > 0 {
		t.handlerFailures.Add(int64(n))
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

// tracerKey and eventKey are used for storing values in context.Context
type (
	tracerKey struct{}
	eventKey  struct{}
)

// WithTracer returns a new context with the given tracer
func WithTracer(ctx context.Context, t *Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, t)
}

// TracerFromContext returns the tracer from the context, or a default tracer
// that logs completed events to the context's logger.
func TracerFromContext(ctx context.Context) *Tracer {
	if t, ok := ctx.Value(tracerKey{}).(*Tracer); ok && t != nil {
		return t
	}
	return defaultTracer
}

// EventFromContext returns the innermost open event begun from ctx, or nil.
func EventFromContext(ctx context.Context) *EventContext {
	if ctx == nil {
		return nil
	}
	ec, _ := ctx.Value(eventKey{}).(*EventContext)
	return ec
}

// Start begins an event using the tracer from the context
func Start(ctx context.Context, traceType TraceType, name string, startPayload any) (context.Context, *EventContext) {
	return TracerFromContext(ctx).Begin(ctx, traceType, name, startPayload)
}
