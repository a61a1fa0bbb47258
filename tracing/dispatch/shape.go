/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import (
	"context"
	"fmt"
	"iter"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Shape is the execution shape of a callable.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeStream: func(context.Context, I) <-chan Chunk[T]
	ShapeStream
	// ShapeAsync: func(context.Context, I) <-chan Outcome[T]
	ShapeAsync
	// ShapeSeq: func(context.Context, I) iter.Seq2[T, error]
	ShapeSeq
	// ShapeDirect: func(context.Context, I) (T, error)
	ShapeDirect
)

func (s Shape) String() string {
	switch s {
	case ShapeStream:
		return "stream"
	case ShapeAsync:
		return "async"
	case ShapeSeq:
		return "sequence"
	case ShapeDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// DetectShape classifies fn, most specific shape first. Both the named
// function types of this package and their plain func equivalents are
// recognized.
func DetectShape[I, T any](fn any) Shape {
	switch fn.(type) {
	case StreamFunc[I, T], func(context.Context, I) <-chan Chunk[T]:
		return ShapeStream
	case AsyncFunc[I, T], func(context.Context, I) <-chan Outcome[T]:
		return ShapeAsync
	case SeqFunc[I, T], func(context.Context, I) iter.Seq2[T, error]:
		return ShapeSeq
	case Func[I, T], func(context.Context, I) (T, error):
		return ShapeDirect
	default:
		return ShapeUnknown
	}
}

// Wrap instruments fn according to its detected shape and returns a value
// of exactly fn's type. T is the item type for sequence shapes and the result
// type otherwise; cfg's stream settings only apply to sequence shapes.
//
// An unrecognized callable is returned unchanged, untraced.
func Wrap[I, T, R any](t *eventtrace.Tracer, cfg StreamConfig[T, R], fn any) any {
	switch f := fn.(type) {
	case StreamFunc[I, T]:
		return WrapStream(t, cfg, f)
	case func(context.Context, I) <-chan Chunk[T]:
		return (func(context.Context, I) <-chan Chunk[T])(WrapStream(t, cfg, StreamFunc[I, T](f)))

	case AsyncFunc[I, T]:
		return WrapAsync(t, cfg.Config, f)
	case func(context.Context, I) <-chan Outcome[T]:
		return (func(context.Context, I) <-chan Outcome[T])(WrapAsync(t, cfg.Config, AsyncFunc[I, T](f)))

	case SeqFunc[I, T]:
		return WrapSeq(t, cfg, f)
	case func(context.Context, I) iter.Seq2[T, error]:
		return (func(context.Context, I) iter.Seq2[T, error])(WrapSeq(t, cfg, SeqFunc[I, T](f)))

	case Func[I, T]:
		return WrapFunc(t, cfg.Config, f)
	case func(context.Context, I) (T, error):
		return (func(context.Context, I) (T, error))(WrapFunc(t, cfg.Config, Func[I, T](f)))

	default:
		disabled(cfg.Config, fmt.Errorf("unsupported callable %T", fn))
		return fn
	}
}
