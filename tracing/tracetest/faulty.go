/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tracetest

import (
	"context"
	"slices"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Panicking is a Handler that panics in the named callbacks (Start, End, Log,
// Error). It is used to check that handler failures stay isolated.
type Panicking struct {
	On []string
}

var _ eventtrace.Handler = Panicking{}

func (p Panicking) maybePanic(kind string) {
	if slices.Contains(p.On, kind) {
		panic("tracetest: handler failure in " + kind)
	}
}

// OnStart implements eventtrace.Handler
func (p Panicking) OnStart(context.Context, eventtrace.Snapshot) { p.maybePanic(Start) }

// OnEnd implements eventtrace.Handler
func (p Panicking) OnEnd(context.Context, eventtrace.Snapshot) { p.maybePanic(End) }

// OnLog implements eventtrace.Handler
func (p Panicking) OnLog(context.Context, eventtrace.Snapshot, eventtrace.LogEntry) {
	p.maybePanic(Log)
}

// OnError implements eventtrace.Handler
func (p Panicking) OnError(context.Context, eventtrace.Snapshot, eventtrace.ErrorInfo) {
	p.maybePanic(Error)
}
