/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package eventtrace

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"chainguard.dev/tracecore/tracing/correlation"
)

// EventContext is the live handle to one open event. It is owned by the
// invocation that began the event and is released once the event closes; it
// is never reopened.
type EventContext struct {
	tracer *Tracer
	ctx    context.Context
	scope  *correlation.Scope

	mu     sync.Mutex // Protects ev and closed
	ev     Snapshot
	closed bool
}

// ID returns the event id.
func (ec *EventContext) ID() string {
	return ec.ev.ID
}

// CorrelationID returns the correlation id the event was opened under.
func (ec *EventContext) CorrelationID() string {
	return ec.ev.CorrelationID
}

// Scope returns the correlation scope pushed for this event.
func (ec *EventContext) Scope() *correlation.Scope {
	return ec.scope
}

// Closed reports whether the event has left the open state.
func (ec *EventContext) Closed() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.closed
}

// Snapshot returns a copy of the event in its current state.
func (ec *EventContext) Snapshot() Snapshot {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.ev.clone()
}

// SetAttribute records an attribute. It has no effect once the event is closed.
func (ec *EventContext) SetAttribute(key string, value any) {
	ec.SetAttributes(map[string]any{key: value})
}

// SetAttributes records several attributes at once.
func (ec *EventContext) SetAttributes(attrs map[string]any) {
	if len(attrs) == 0 {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.closed {
		ec.tracer.diag(ec.ctx).With("event_id", ec.ev.ID).
			Warn("Ignoring attributes set on a closed event")
		return
	}
	for k, v := range attrs {
		ec.ev.Attributes[k] = correlation.Normalize(v)
	}
}

// Log appends a timestamped message to the event and notifies OnLog.
func (ec *EventContext) Log(msg string) {
	ec.mu.Lock()
	if ec.closed {
		ec.mu.Unlock()
		ec.tracer.diag(ec.ctx).With("event_id", ec.ev.ID).
			Warn("Ignoring log line on a closed event", "message", msg)
		return
	}
	entry := LogEntry{Time: ec.tracer.clock.Now(), Message: msg}
	ec.ev.LogEntries = append(ec.ev.LogEntries, entry)
	snap := ec.ev.clone()
	ec.mu.Unlock()

	ec.tracer.notify(ec.ctx, "OnLog", &snap, func(h Handler) { h.OnLog(ec.ctx, snap, entry) })
}

// Logf is Log with formatting.
func (ec *EventContext) Logf(format string, args ...any) {
	ec.Log(fmt.Sprintf(format, args...))
}

// CloseOption adjusts how an event is closed.
type CloseOption func(*closeConfig)

type closeConfig struct {
	attrs   map[string]any
	partial bool
}

// WithFinalAttributes records attributes as part of closing.
func WithFinalAttributes(attrs map[string]any) CloseOption {
	return func(c *closeConfig) {
		if c.attrs == nil {
			c.attrs = make(map[string]any, len(attrs))
		}
		maps.Copy(c.attrs, attrs)
	}
}

// AsPartial marks a successful close as carrying a partial result, as when a
// stream was abandoned before it was exhausted.
func AsPartial() CloseOption {
	return func(c *closeConfig) {
		c.partial = true
	}
}

// Close moves the event to StatusSucceeded when err is nil, or StatusFailed
// otherwise, then notifies every handler's OnEnd or OnError.
//
// An event closes exactly once. A second call returns ErrAlreadyClosed and is
// reported on the diagnostic channel; a tracer built with
// WithStrictLifecycle(true) panics instead.
func (ec *EventContext) Close(endPayload any, err error, opts ...CloseOption) error {
	var cfg closeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ec.mu.Lock()
	if ec.closed {
		id := ec.ev.ID
		ec.mu.Unlock()
		misuse := fmt.Errorf("%w: %s", ErrAlreadyClosed, id)
		if ec.tracer.strict {
			panic(misuse)
		}
		ec.tracer.diag(ec.ctx).With("event_id", id).
			Error("Event closed twice", "error", misuse)
		return misuse
	}
	ec.closed = true
	ec.scope.Close()

	for k, v := range cfg.attrs {
		ec.ev.Attributes[k] = correlation.Normalize(v)
	}
	ec.ev.EndTime = ec.tracer.clock.Now()
	ec.ev.EndPayload = endPayload
	ec.ev.Partial = cfg.partial

	var info ErrorInfo
	if err != nil {
		info = NewErrorInfo(err)
		ec.ev.Status = StatusFailed
		ec.ev.Error = &info
	} else {
		ec.ev.Status = StatusSucceeded
	}
	snap := ec.ev.clone()
	ec.mu.Unlock()

	if err != nil {
		ec.tracer.notify(ec.ctx, "OnError", &snap, func(h Handler) { h.OnError(ec.ctx, snap, info) })
	} else {
		ec.tracer.notify(ec.ctx, "OnEnd", &snap, func(h Handler) { h.OnEnd(ec.ctx, snap) })
	}
	return nil
}
