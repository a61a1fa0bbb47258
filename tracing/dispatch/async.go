/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import (
	"context"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Outcome is the eventual result of an asynchronous call.
type Outcome[O any] struct {
	Value O
	Err   error
}

// AsyncFunc is a suspending callable: it returns immediately and delivers
// its outcome later on the returned channel.
type AsyncFunc[I, O any] func(ctx context.Context, input I) <-chan Outcome[O]

// WrapAsync instruments a suspending callable.
//
// The event closes when the outcome arrives, before it is handed to the
// caller. If ctx is cancelled first the event fails with ctx.Err(); the
// outcome the callable delivers afterwards is still forwarded unchanged.
func WrapAsync[I, O any](t *eventtrace.Tracer, cfg Config, fn AsyncFunc[I, O]) AsyncFunc[I, O] {
	if err := cfg.Validate(); err != nil {
		disabled(cfg, err)
		return fn
	}

	return func(ctx context.Context, input I) <-chan Outcome[O] {
		tctx, ec, ok := begin(ctx, t, cfg, input)
		if !ok {
			return fn(ctx, input)
		}

		src := startAsync(tctx, ec, fn, input)
		if src == nil {
			// A nil channel never delivers; neither does the original.
			_ = ec.Close(nil, errNoOutcome)
			return nil
		}

		out := make(chan Outcome[O], 1)
		go func() {
			defer close(out)

			select {
			case res, ok := <-src:
				if !ok {
					_ = ec.Close(nil, errNoOutcome)
					return
				}
				_ = ec.Close(res.Value, res.Err)
				out <- res

			case <-tctx.Done():
				_ = ec.Close(nil, tctx.Err())
				if res, ok := <-src; ok {
					out <- res
				}
			}
		}()
		return out
	}
}

// startAsync invokes fn, failing the event if fn panics before returning.
func startAsync[I, O any](ctx context.Context, ec *eventtrace.EventContext, fn AsyncFunc[I, O], input I) (src <-chan Outcome[O]) {
	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		_ = ec.Close(nil, failure(r))
		rethrow(r)
	}()

	src = fn(ctx, input)
	returned = true
	return src
}
