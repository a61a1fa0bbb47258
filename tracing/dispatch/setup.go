/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import (
	"context"
	"errors"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// errNoOutcome fails an asynchronous call whose channel closed without a value.
var errNoOutcome = errors.New("asynchronous call completed without an outcome")

// errGoexit fails an event whose goroutine exited through runtime.Goexit.
var errGoexit = errors.New("goroutine exited before the call returned")

// begin opens the event for one call. Instrumentation failures are logged and
// reported as ok=false so the caller runs the original callable unwrapped.
func begin(ctx context.Context, t *eventtrace.Tracer, cfg Config, input any) (tctx context.Context, ec *eventtrace.EventContext, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			clog.FromContext(ctx).With("trace_name", cfg.TraceName).
				With("panic", r).
				Warn("Tracing setup failed, running call untraced")
			tctx, ec, ok = ctx, nil, false
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil {
		t = eventtrace.TracerFromContext(ctx)
	}
	if cfg.OmitInput {
		input = nil
	}
	tctx, ec = t.Begin(ctx, cfg.TraceType, cfg.TraceName, input)
	ec.SetAttributes(cfg.Attributes)
	return tctx, ec, true
}

// disabled reports a configuration that cannot be traced. The callable is
// then returned as is.
func disabled(cfg Config, err error) {
	clog.FromContext(context.Background()).With("trace_name", cfg.TraceName).
		With("error", err.Error()).
		Warn("Tracing disabled for callable")
}

// failure converts a recovered panic value into the error recorded on the
// event. A nil value means the goroutine is exiting through runtime.Goexit.
func failure(r any) error {
	if r == nil {
		return errGoexit
	}
	return eventtrace.NewPanicError(r)
}

// rethrow resumes a recovered panic. Goexit needs no help: the runtime keeps
// unwinding once the deferred calls return.
func rethrow(r any) {
	if r != nil {
		panic(r)
	}
}
