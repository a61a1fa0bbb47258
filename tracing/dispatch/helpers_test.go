/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch_test

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/require"

	"chainguard.dev/tracecore/tracing/dispatch"
	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/tracetest"
)

// delta mimics a streamed model response fragment.
type delta struct {
	Text         string
	FinishReason string
}

func deltaReason(d delta) (string, bool) {
	return d.FinishReason, d.FinishReason != ""
}

func joinDeltas(ds []delta) string {
	var b bytes.Buffer
	for _, d := range ds {
		b.WriteString(d.Text)
	}
	return b.String()
}

func newTracer(t *testing.T, handlers ...eventtrace.Handler) (*eventtrace.Tracer, *tracetest.Recorder) {
	t.Helper()
	rec := tracetest.NewRecorder()
	tracer := eventtrace.New(
		eventtrace.WithHandlers(append(handlers, rec)...),
		eventtrace.WithLogger(clog.New(slog.NewTextHandler(testWriter{t}, nil))),
		eventtrace.WithStrictLifecycle(true),
	)
	return tracer, rec
}

// testWriter sends diagnostic output to the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

func stepConfig(name string) dispatch.Config {
	return dispatch.Config{TraceType: eventtrace.Step, TraceName: name}
}

func textConfig(name string) dispatch.StreamConfig[string, string] {
	return dispatch.StreamConfig[string, string]{
		Config: dispatch.Config{TraceType: eventtrace.ModelCall, TraceName: name},
		Merge: func(items []string) string {
			out := ""
			for _, s := range items {
				out += s
			}
			return out
		},
	}
}

// words produces the given items in order.
func words(items ...string) dispatch.SeqFunc[string, string] {
	return func(_ context.Context, _ string) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, w := range items {
				if !yield(w, nil) {
					return
				}
			}
		}
	}
}

// waitForFinished waits until n events have finished.
func waitForFinished(t *testing.T, rec *tracetest.Recorder, n int) []eventtrace.Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(rec.Finished()) >= n
	}, 2*time.Second, time.Millisecond)
	return rec.Finished()
}
