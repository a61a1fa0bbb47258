/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import (
	"context"

	"chainguard.dev/tracecore/tracing/aggregate"
	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Chunk is one element of a channel stream: an item, or the error that
// interrupted production.
type Chunk[T any] struct {
	Item T
	Err  error
}

// StreamFunc is a suspending sequence producer: it returns immediately and
// sends items on the returned channel, closing it when done. Producers are
// expected to stop when ctx is cancelled.
type StreamFunc[I, T any] func(ctx context.Context, input I) <-chan Chunk[T]

// WrapStream instruments a suspending sequence producer.
//
// Chunks are observed and then forwarded unchanged, in order, on the returned
// channel. The event closes when the source channel closes (succeeded, or
// failed with the first chunk error) or when ctx is cancelled. A cancelled
// stream is recorded as failed with ctx.Err() and marked partial, carrying the
// merge of what was observed; unlike a sequence the consumer stops ranging,
// cancellation is not distinguishable from an outside abort, so it does not
// count as a successful partial close.
//
// Cancellation only ends the event. Every chunk the producer still sends is
// passed through until the source closes, as the producer's own consumer
// would see it; a consumer that stops receiving blocks the producer exactly
// as it would without tracing.
func WrapStream[I, T, R any](t *eventtrace.Tracer, cfg StreamConfig[T, R], fn StreamFunc[I, T]) StreamFunc[I, T] {
	if err := cfg.Validate(); err != nil {
		disabled(cfg.Config, err)
		return fn
	}

	return func(ctx context.Context, input I) <-chan Chunk[T] {
		tctx, ec, ok := begin(ctx, t, cfg.Config, input)
		if !ok {
			return fn(ctx, input)
		}

		agg := cfg.aggregator()
		src := startStream(tctx, ec, agg, fn, input)
		if src == nil {
			closeStream(ec, agg.Finalize(true), errNoOutcome)
			return nil
		}

		out := make(chan Chunk[T])
		go forward(tctx, ec, agg, src, out)
		return out
	}
}

// forward pipes src to out, observing every item, until src closes. It owns
// closing the event and out.
func forward[T, R any](ctx context.Context, ec *eventtrace.EventContext, agg *aggregate.Aggregator[T, R], src <-chan Chunk[T], out chan<- Chunk[T]) {
	defer close(out)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if !ec.Closed() {
			res := agg.Finalize(true)
			_ = ec.Close(endPayload(res), failure(r),
				eventtrace.WithFinalAttributes(streamAttributes(res)))
		}
		passthrough(src, out)
	}()

	var failed error
	for {
		if ctx.Err() != nil {
			cancelStream(ctx, ec, agg)
			passthrough(src, out)
			return
		}

		select {
		case c, ok := <-src:
			if !ok {
				closeStream(ec, agg.Finalize(false), failed)
				return
			}
			if c.Err != nil {
				if failed == nil {
					failed = c.Err
				}
			} else {
				agg.Observe(c.Item)
			}

			select {
			case out <- c:
			case <-ctx.Done():
				cancelStream(ctx, ec, agg)
				out <- c
				passthrough(src, out)
				return
			}

		case <-ctx.Done():
			cancelStream(ctx, ec, agg)
			passthrough(src, out)
			return
		}
	}
}

// cancelStream closes the event of a stream whose context is done.
func cancelStream[T, R any](ctx context.Context, ec *eventtrace.EventContext, agg *aggregate.Aggregator[T, R]) {
	res := agg.Finalize(true)
	_ = ec.Close(endPayload(res), ctx.Err(),
		eventtrace.WithFinalAttributes(streamAttributes(res)))
}

// passthrough forwards the rest of src without observing it.
func passthrough[T any](src <-chan Chunk[T], out chan<- Chunk[T]) {
	for c := range src {
		out <- c
	}
}

// startStream invokes fn, failing the event if fn panics before returning.
func startStream[I, T, R any](ctx context.Context, ec *eventtrace.EventContext, agg *aggregate.Aggregator[T, R], fn StreamFunc[I, T], input I) (src <-chan Chunk[T]) {
	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		res := agg.Finalize(true)
		_ = ec.Close(nil, failure(r), eventtrace.WithFinalAttributes(streamAttributes(res)))
		rethrow(r)
	}()

	src = fn(ctx, input)
	returned = true
	return src
}

// closeStream closes a stream event once production ended or the consumer
// walked away.
func closeStream[R any](ec *eventtrace.EventContext, res aggregate.Result[R], failed error) {
	opts := []eventtrace.CloseOption{eventtrace.WithFinalAttributes(streamAttributes(res))}
	if res.Partial && failed == nil {
		opts = append(opts, eventtrace.AsPartial())
	}
	_ = ec.Close(endPayload(res), failed, opts...)
}
