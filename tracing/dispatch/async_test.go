/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chainguard.dev/tracecore/tracing/dispatch"
	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/tracetest"
)

// later delivers out (or err) once release is closed.
func later(release <-chan struct{}, out string, err error) dispatch.AsyncFunc[string, string] {
	return func(context.Context, string) <-chan dispatch.Outcome[string] {
		ch := make(chan dispatch.Outcome[string], 1)
		go func() {
			defer close(ch)
			<-release
			ch <- dispatch.Outcome[string]{Value: out, Err: err}
		}()
		return ch
	}
}

func TestWrapAsyncDeliversOutcome(t *testing.T) {
	tracer, rec := newTracer(t)
	release := make(chan struct{})
	wrapped := dispatch.WrapAsync(tracer, stepConfig("fetch"), later(release, "payload", nil))

	out := wrapped(context.Background(), "url")
	// The event stays open until the outcome arrives.
	require.Equal(t, []string{tracetest.Start}, rec.Kinds())

	close(release)
	res, ok := <-out
	require.True(t, ok)
	require.Equal(t, dispatch.Outcome[string]{Value: "payload"}, res)

	_, ok = <-out
	require.False(t, ok, "outcome channel should be closed after delivery")

	require.Equal(t, []string{tracetest.Start, tracetest.End}, rec.Kinds())
	require.Equal(t, "payload", rec.Finished()[0].EndPayload)
}

func TestWrapAsyncError(t *testing.T) {
	tracer, rec := newTracer(t)
	boom := errors.New("backend unavailable")
	release := make(chan struct{})
	close(release)

	res := <-dispatch.WrapAsync(tracer, stepConfig("fetch"), later(release, "", boom))(context.Background(), "url")
	if res.Err != boom {
		t.Errorf("error: got = %v, wanted = %v", res.Err, boom)
	}

	require.Equal(t, []string{tracetest.Start, tracetest.Error}, rec.Kinds())
	require.Equal(t, eventtrace.StatusFailed, rec.Finished()[0].Status)
}

func TestWrapAsyncCancelled(t *testing.T) {
	tracer, rec := newTracer(t)
	release := make(chan struct{})
	wrapped := dispatch.WrapAsync(tracer, stepConfig("slow"), later(release, "late", nil))

	ctx, cancel := context.WithCancel(context.Background())
	out := wrapped(ctx, "x")
	cancel()

	require.Eventually(t, func() bool {
		return rec.Count(tracetest.Error) == 1
	}, 2*time.Second, time.Millisecond)
	require.ErrorIs(t, rec.Calls()[1].Error.Err, context.Canceled)

	// The outcome produced after cancellation is still handed over.
	close(release)
	res := <-out
	require.Equal(t, "late", res.Value)
	require.Equal(t, 2, len(rec.Calls()), "event must close exactly once")
}

func TestWrapAsyncClosedWithoutOutcome(t *testing.T) {
	tracer, rec := newTracer(t)
	empty := func(context.Context, string) <-chan dispatch.Outcome[int] {
		ch := make(chan dispatch.Outcome[int])
		close(ch)
		return ch
	}

	_, ok := <-dispatch.WrapAsync(tracer, stepConfig("empty"), dispatch.AsyncFunc[string, int](empty))(context.Background(), "")
	require.False(t, ok)

	waitForFinished(t, rec, 1)
	require.Equal(t, []string{tracetest.Start, tracetest.Error}, rec.Kinds())
}

func TestWrapAsyncPanicBeforeReturn(t *testing.T) {
	tracer, rec := newTracer(t)
	var broken dispatch.AsyncFunc[string, int] = func(context.Context, string) <-chan dispatch.Outcome[int] {
		panic("no channel")
	}

	require.PanicsWithValue(t, "no channel", func() {
		dispatch.WrapAsync(tracer, stepConfig("broken"), broken)(context.Background(), "")
	})
	require.Equal(t, []string{tracetest.Start, tracetest.Error}, rec.Kinds())
}
