/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import (
	"context"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Func is a direct-return callable.
type Func[I, O any] func(ctx context.Context, input I) (O, error)

// WrapFunc instruments a direct-return callable. The wrapper returns exactly
// what fn returns; a panic in fn fails the event and is re-raised unchanged.
// A nil tracer means the tracer carried by each call's context.
func WrapFunc[I, O any](t *eventtrace.Tracer, cfg Config, fn Func[I, O]) Func[I, O] {
	if err := cfg.Validate(); err != nil {
		disabled(cfg, err)
		return fn
	}

	return func(ctx context.Context, input I) (out O, err error) {
		tctx, ec, ok := begin(ctx, t, cfg, input)
		if !ok {
			return fn(ctx, input)
		}

		returned := false
		defer func() {
			if returned {
				return
			}
			r := recover()
			_ = ec.Close(nil, failure(r))
			rethrow(r)
		}()

		out, err = fn(tctx, input)
		returned = true
		_ = ec.Close(out, err)
		return out, err
	}
}
