/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tracetest

import (
	"context"
	"sync"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Callback names recorded by Recorder.
const (
	Start = "start"
	End   = "end"
	Log   = "log"
	Error = "error"
)

// Call is one recorded handler callback.
type Call struct {
	Kind  string
	Event eventtrace.Snapshot
	Entry eventtrace.LogEntry
	Error eventtrace.ErrorInfo
}

// Recorder is a Handler that keeps every callback it receives, in order.
// It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

var _ eventtrace.Handler = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// OnStart implements eventtrace.Handler
func (r *Recorder) OnStart(_ context.Context, ev eventtrace.Snapshot) {
	r.record(Call{Kind: Start, Event: ev})
}

// OnEnd implements eventtrace.Handler
func (r *Recorder) OnEnd(_ context.Context, ev eventtrace.Snapshot) {
	r.record(Call{Kind: End, Event: ev})
}

// OnLog implements eventtrace.Handler
func (r *Recorder) OnLog(_ context.Context, ev eventtrace.Snapshot, entry eventtrace.LogEntry) {
	r.record(Call{Kind: Log, Event: ev, Entry: entry})
}

// OnError implements eventtrace.Handler
func (r *Recorder) OnError(_ context.Context, ev eventtrace.Snapshot, info eventtrace.ErrorInfo) {
	r.record(Call{Kind: Error, Event: ev, Error: info})
}

// Calls returns a copy of the recorded callbacks.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Kinds returns the callback names in the order they were received.
func (r *Recorder) Kinds() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Kind
	}
	return out
}

// Count returns how many callbacks of the given kind were received.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Finished returns the snapshots handed to OnEnd and OnError, in order.
func (r *Recorder) Finished() []eventtrace.Snapshot {
	var out []eventtrace.Snapshot
	for _, c := range r.Calls() {
		if c.Kind == End || c.Kind == Error {
			out = append(out, c.Event)
		}
	}
	return out
}

// ForEvent returns the callback names received for one event id.
func (r *Recorder) ForEvent(id string) []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Event.ID == id {
			out = append(out, c.Kind)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
