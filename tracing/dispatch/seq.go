/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import (
	"context"
	"iter"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// SeqFunc produces a lazy, finite sequence of items. A non-nil error
// accompanying an item reports a failure of the producer.
type SeqFunc[I, T any] func(ctx context.Context, input I) iter.Seq2[T, error]

// WrapSeq instruments a sequence-producing callable.
//
// Like the sequences it wraps, the result is lazy: the event opens and fn is
// called when ranging starts, so each range over the returned sequence is one
// traced invocation. Every item is observed and then yielded unchanged, in
// order. The event closes when
//   - the sequence is exhausted: succeeded with the merged value, or failed
//     with the first error the producer reported;
//   - the consumer stops early: succeeded, marked partial, with the merge of
//     what was observed;
//   - the producer or the consumer panics: failed, and the panic continues.
func WrapSeq[I, T, R any](t *eventtrace.Tracer, cfg StreamConfig[T, R], fn SeqFunc[I, T]) SeqFunc[I, T] {
	if err := cfg.Validate(); err != nil {
		disabled(cfg.Config, err)
		return fn
	}

	return func(ctx context.Context, input I) iter.Seq2[T, error] {
		return func(yield func(T, error) bool) {
			tctx, ec, ok := begin(ctx, t, cfg.Config, input)
			if !ok {
				for item, err := range fn(ctx, input) {
					if !yield(item, err) {
						return
					}
				}
				return
			}

			agg := cfg.aggregator()
			var failed error
			done := false
			defer func() {
				if done {
					return
				}
				r := recover()
				res := agg.Finalize(true)
				_ = ec.Close(endPayload(res), failure(r),
					eventtrace.WithFinalAttributes(streamAttributes(res)))
				rethrow(r)
			}()

			for item, err := range fn(tctx, input) {
				if err != nil {
					if failed == nil {
						failed = err
					}
				} else {
					agg.Observe(item)
				}
				if !yield(item, err) {
					done = true
					res := agg.Finalize(true)
					closeStream(ec, res, failed)
					return
				}
			}

			done = true
			closeStream(ec, agg.Finalize(false), failed)
		}
	}
}
