/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/tracecore/tracing/correlation"
	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/tracetest"
)

func TestAgentRequest(t *testing.T) {
	rec := tracetest.NewRecorder()
	a := newAgent(eventtrace.New(eventtrace.WithHandlers(rec)), time.Millisecond)

	ctx := correlation.WithCorrelationID(context.Background(), "req-A")
	answer, err := a.handle(ctx, "tracing")
	require.NoError(t, err)
	require.Equal(t, "YOU ASKED ABOUT TRACING (exit 12)", answer)

	finished := rec.Finished()
	require.Len(t, finished, 5)

	byName := map[string]eventtrace.Snapshot{}
	for _, ev := range finished {
		byName[ev.TraceName] = ev
		if ev.CorrelationID != "req-A" {
			t.Errorf("%s correlation id: got = %q, wanted = req-A", ev.TraceName, ev.CorrelationID)
		}
		if ev.Status != eventtrace.StatusSucceeded {
			t.Errorf("%s status: got = %v, wanted = %v", ev.TraceName, ev.Status, eventtrace.StatusSucceeded)
		}
	}

	root := byName["handle-request"]
	for _, name := range []string{"generate", "lookup", "exec", "summarize"} {
		if got := byName[name].ParentID; got != root.ID {
			t.Errorf("%s parent: got = %q, wanted = %q", name, got, root.ID)
		}
	}

	gen := byName["generate"]
	if gen.EndPayload != "you asked about tracing" {
		t.Errorf("generate payload: got = %v, wanted = %q", gen.EndPayload, "you asked about tracing")
	}
	if gen.Attributes[eventtrace.AttrCompletionReason] != "stop" {
		t.Errorf("completion reason: got = %v, wanted = stop", gen.Attributes[eventtrace.AttrCompletionReason])
	}
	if diff := cmp.Diff([]string{"you", "asked", "about", "tracing"}, byName["lookup"].EndPayload); diff != "" {
		t.Errorf("lookup payload (-want +got):\n%s", diff)
	}
	if got := len(byName["lookup"].LogEntries); got != 1 {
		t.Errorf("lookup log entries: got = %d, wanted = 1", got)
	}
	if byName["summarize"].EndPayload != 20 {
		t.Errorf("summarize payload: got = %v, wanted = 20", byName["summarize"].EndPayload)
	}
}

func TestAgentCancelled(t *testing.T) {
	rec := tracetest.NewRecorder()
	a := newAgent(eventtrace.New(eventtrace.WithHandlers(rec)), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.handle(ctx, "anything")
	require.ErrorIs(t, err, context.Canceled)

	finished := rec.Finished()
	require.Len(t, finished, 2)
	for _, ev := range finished {
		require.Equal(t, eventtrace.StatusFailed, ev.Status, ev.TraceName)
	}
}
