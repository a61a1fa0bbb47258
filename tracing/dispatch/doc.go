/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package dispatch wraps callables so that every invocation is recorded as an
event, without changing what the caller observes.

# Shapes

Four execution shapes are supported, resolved most specific first:

  - StreamFunc: func(ctx, I) <-chan Chunk[T], a suspending sequence producer
  - AsyncFunc:  func(ctx, I) <-chan Outcome[O], a suspending call
  - SeqFunc:    func(ctx, I) iter.Seq2[T, error], a lazy sequence
  - Func:       func(ctx, I) (O, error), a direct-return call

Each shape has its own adapter (WrapStream, WrapAsync, WrapSeq, WrapFunc)
returning a function of the same type. Wrap selects the adapter from the
dynamic type of its argument.

# Guarantees

Return values, errors, panics and the items of a sequence reach the caller
exactly as the wrapped callable produced them. The event of every invocation
is closed exactly once on every exit path, including early abandonment of a
sequence and cancellation of the context. Instrumentation that fails to set
up is logged and the callable runs untraced.

# Usage

	chat := dispatch.WrapSeq(tracer, dispatch.StreamConfig[Delta, string]{
		Config: dispatch.Config{
			TraceType: eventtrace.ModelCall,
			TraceName: "chat",
		},
		CompletionReason: func(d Delta) (string, bool) {
			return d.FinishReason, d.FinishReason != ""
		},
		Merge: joinDeltas,
	}, client.Stream)

	for delta, err := range chat(ctx, request) {
		...
	}
*/
package dispatch
