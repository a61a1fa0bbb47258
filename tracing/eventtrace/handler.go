/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package eventtrace

import (
	"context"
	"slices"

	"github.com/chainguard-dev/clog"
)

// Handler receives the lifecycle callbacks of every event.
//
// Handlers run synchronously on the goroutine that owns the event, in
// registration order, so a slow handler adds latency to the traced call.
// Handlers that need to do I/O should queue the work to a background worker
// (see the buffered sink). A handler shared by concurrent events must
// synchronize its own state.
type Handler interface {
	// OnStart is called once when the event opens.
	OnStart(ctx context.Context, ev Snapshot)
	// OnEnd is called once when the event succeeds.
	OnEnd(ctx context.Context, ev Snapshot)
	// OnLog is called for every intermediate log line.
	OnLog(ctx context.Context, ev Snapshot, entry LogEntry)
	// OnError is called once when the event fails, instead of OnEnd.
	OnError(ctx context.Context, ev Snapshot, info ErrorInfo)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Start func(ctx context.Context, ev Snapshot)
	End   func(ctx context.Context, ev Snapshot)
	Log   func(ctx context.Context, ev Snapshot, entry LogEntry)
	Error func(ctx context.Context, ev Snapshot, info ErrorInfo)
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) OnStart(ctx context.Context, ev Snapshot) {
	if h.Start != nil {
		h.Start(ctx, ev)
	}
}

func (h HandlerFuncs) OnEnd(ctx context.Context, ev Snapshot) {
	if h.End != nil {
		h.End(ctx, ev)
	}
}

func (h HandlerFuncs) OnLog(ctx context.Context, ev Snapshot, entry LogEntry) {
	if h.Log != nil {
		h.Log(ctx, ev, entry)
	}
}

func (h HandlerFuncs) OnError(ctx context.Context, ev Snapshot, info ErrorInfo) {
	if h.Error != nil {
		h.Error(ctx, ev, info)
	}
}

// HandlerSet is an ordered, immutable collection of handlers. It is built
// once at setup and read concurrently by every open event without locking.
type HandlerSet struct {
	handlers []Handler
}

// NewHandlerSet returns a set holding the non-nil handlers in order.
func NewHandlerSet(handlers ...Handler) HandlerSet {
	hs := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return HandlerSet{handlers: hs}
}

// With returns a new set with handlers appended. The receiver is unchanged.
func (s HandlerSet) With(handlers ...Handler) HandlerSet {
	return NewHandlerSet(append(slices.Clone(s.handlers), handlers...)...)
}

// Len returns the number of handlers.
func (s HandlerSet) Len() int {
	return len(s.handlers)
}

// Handlers returns a copy of the handlers in registration order.
func (s HandlerSet) Handlers() []Handler {
	return slices.Clone(s.handlers)
}

// notify calls fn for every handler in order. A panicking handler is logged
// and skipped; the others still run. It returns the number of failures.
func (s HandlerSet) notify(ctx context.Context, log *clog.Logger, callback string, ev *Snapshot, fn func(Handler)) (failures int) {
	for i, h := range s.handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					failures++
					log.With("callback", callback).
						With("handler", i).
						With("handler_type", typeName(h)).
						With("event_id", ev.ID).
						With("trace_name", ev.TraceName).
						With("panic", r).
						Warn("Trace handler failed")
				}
			}()
			fn(h)
		}()
	}
	return failures
}
