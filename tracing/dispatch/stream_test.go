/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/tracecore/tracing/dispatch"
	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/tracetest"
)

// chunks sends the given chunks and closes the channel.
func chunks[T any](cs ...dispatch.Chunk[T]) dispatch.StreamFunc[string, T] {
	return func(ctx context.Context, _ string) <-chan dispatch.Chunk[T] {
		ch := make(chan dispatch.Chunk[T])
		go func() {
			defer close(ch)
			for _, c := range cs {
				select {
				case ch <- c:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	}
}

func TestWrapStreamForwardsAndMerges(t *testing.T) {
	tracer, rec := newTracer(t)
	cfg := dispatch.StreamConfig[delta, string]{
		Config:           dispatch.Config{TraceType: eventtrace.ModelCall, TraceName: "chat"},
		CompletionReason: deltaReason,
		Merge:            joinDeltas,
	}
	want := []dispatch.Chunk[delta]{
		{Item: delta{Text: "Hel"}},
		{Item: delta{Text: "lo", FinishReason: "stop"}},
	}

	var got []dispatch.Chunk[delta]
	for c := range dispatch.WrapStream(tracer, cfg, chunks(want...))(context.Background(), "hi") {
		got = append(got, c)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunks (-want +got):\n%s", diff)
	}
	finished := waitForFinished(t, rec, 1)
	ev := finished[0]
	require.Equal(t, eventtrace.StatusSucceeded, ev.Status)
	require.Equal(t, "Hello", ev.EndPayload)
	require.Equal(t, "stop", ev.Attributes[eventtrace.AttrCompletionReason])
	require.False(t, ev.Partial)
}

func TestWrapStreamErrorChunk(t *testing.T) {
	tracer, rec := newTracer(t)
	boom := errors.New("connection reset")

	var got []dispatch.Chunk[string]
	src := chunks(dispatch.Chunk[string]{Item: "a"}, dispatch.Chunk[string]{Err: boom})
	for c := range dispatch.WrapStream(tracer, textConfig("flaky"), src)(context.Background(), "") {
		got = append(got, c)
	}

	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Item)
	require.Same(t, boom, got[1].Err)

	waitForFinished(t, rec, 1)
	require.Equal(t, []string{tracetest.Start, tracetest.Error}, rec.Kinds())
	require.Same(t, boom, rec.Calls()[1].Error.Err)
	require.Equal(t, "a", rec.Finished()[0].EndPayload)
}

func TestWrapStreamCancelled(t *testing.T) {
	tracer, rec := newTracer(t)
	release := make(chan struct{})

	// The producer sends one item, stalls without watching ctx, then sends
	// one more.
	var stalled dispatch.StreamFunc[string, string] = func(context.Context, string) <-chan dispatch.Chunk[string] {
		ch := make(chan dispatch.Chunk[string])
		go func() {
			defer close(ch)
			ch <- dispatch.Chunk[string]{Item: "a"}
			<-release
			ch <- dispatch.Chunk[string]{Item: "b"}
		}()
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := dispatch.WrapStream(tracer, textConfig("stall"), stalled)(ctx, "")

	first := <-out
	require.Equal(t, "a", first.Item)
	cancel()

	finished := waitForFinished(t, rec, 1)
	ev := finished[0]
	require.Equal(t, eventtrace.StatusFailed, ev.Status)
	require.ErrorIs(t, ev.Error.Err, context.Canceled)
	require.Equal(t, "a", ev.EndPayload)
	require.Equal(t, true, ev.Attributes[eventtrace.AttrPartial])

	// What the producer sends after cancellation still reaches the consumer.
	close(release)
	var rest []string
	for c := range out {
		rest = append(rest, c.Item)
	}
	if diff := cmp.Diff([]string{"b"}, rest); diff != "" {
		t.Errorf("chunks after cancel (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, len(rec.Calls()), "event must close exactly once")
}

func TestWrapStreamProducerIgnoresCancel(t *testing.T) {
	tracer, rec := newTracer(t)

	// Everything is produced up front; ctx is never consulted.
	var eager dispatch.StreamFunc[string, string] = func(context.Context, string) <-chan dispatch.Chunk[string] {
		ch := make(chan dispatch.Chunk[string], 3)
		for _, s := range []string{"a", "b", "c"} {
			ch <- dispatch.Chunk[string]{Item: s}
		}
		close(ch)
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []string
	for c := range dispatch.WrapStream(tracer, textConfig("eager"), eager)(ctx, "") {
		got = append(got, c.Item)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("chunks (-want +got):\n%s", diff)
	}
	ev := waitForFinished(t, rec, 1)[0]
	require.Equal(t, eventtrace.StatusFailed, ev.Status)
	require.ErrorIs(t, ev.Error.Err, context.Canceled)
	require.Equal(t, []string{tracetest.Start, tracetest.Error}, rec.Kinds())
}

func TestWrapStreamExtractorPanic(t *testing.T) {
	tracer, rec := newTracer(t)
	cfg := textConfig("bad-reason")
	cfg.CompletionReason = func(string) (string, bool) { panic("bad extractor") }

	src := chunks(dispatch.Chunk[string]{Item: "Hel"}, dispatch.Chunk[string]{Item: "lo"})
	var got []string
	for c := range dispatch.WrapStream(tracer, cfg, src)(context.Background(), "") {
		got = append(got, c.Item)
	}

	if diff := cmp.Diff([]string{"Hel", "lo"}, got); diff != "" {
		t.Errorf("chunks (-want +got):\n%s", diff)
	}
	ev := waitForFinished(t, rec, 1)[0]
	require.Equal(t, eventtrace.StatusSucceeded, ev.Status)
	require.Nil(t, ev.EndPayload)
	require.NotNil(t, ev.Attributes[eventtrace.AttrAggregateError])
	require.Equal(t, 2, ev.Attributes[eventtrace.AttrItemCount])
}

func TestWrapStreamPanicBeforeReturn(t *testing.T) {
	tracer, rec := newTracer(t)
	var broken dispatch.StreamFunc[string, string] = func(context.Context, string) <-chan dispatch.Chunk[string] {
		panic("no channel")
	}

	require.PanicsWithValue(t, "no channel", func() {
		dispatch.WrapStream(tracer, textConfig("broken"), broken)(context.Background(), "")
	})
	require.Equal(t, []string{tracetest.Start, tracetest.Error}, rec.Kinds())
}
