/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"chainguard.dev/tracecore/tracing/dispatch"
	"chainguard.dev/tracecore/tracing/eventtrace"
)

// delta is one fragment of a simulated model response.
type delta struct {
	Text         string
	FinishReason string
}

// agent is a simulated request handler whose every dependency is traced.
type agent struct {
	generate  dispatch.SeqFunc[string, delta]
	lookup    dispatch.Func[string, []string]
	sandbox   dispatch.AsyncFunc[string, int]
	summarize dispatch.StreamFunc[[]string, string]
	handle    dispatch.Func[string, string]
}

func newAgent(tracer *eventtrace.Tracer, latency time.Duration) *agent {
	a := &agent{}

	a.generate = dispatch.WrapSeq(tracer, dispatch.StreamConfig[delta, string]{
		Config: dispatch.Config{TraceType: eventtrace.ModelCall, TraceName: "generate"},
		CompletionReason: func(d delta) (string, bool) {
			return d.FinishReason, d.FinishReason != ""
		},
		Merge: func(ds []delta) string {
			var sb strings.Builder
			for _, d := range ds {
				sb.WriteString(d.Text)
			}
			return sb.String()
		},
	}, func(ctx context.Context, prompt string) iter.Seq2[delta, error] {
		return fakeModel(ctx, prompt, latency)
	})

	a.lookup = dispatch.WrapFunc(tracer, dispatch.Config{
		TraceType:  eventtrace.ToolCall,
		TraceName:  "lookup",
		Attributes: map[string]any{"index": "docs"},
	}, func(ctx context.Context, query string) ([]string, error) {
		if ev := eventtrace.EventFromContext(ctx); ev != nil {
			ev.Logf("searching for %q", query)
		}
		if err := sleep(ctx, latency); err != nil {
			return nil, err
		}
		return strings.Fields(query), nil
	})

	a.sandbox = dispatch.WrapAsync(tracer, dispatch.Config{
		TraceType: eventtrace.SandboxCall,
		TraceName: "exec",
	}, func(ctx context.Context, cmd string) <-chan dispatch.Outcome[int] {
		out := make(chan dispatch.Outcome[int], 1)
		go func() {
			defer close(out)
			if err := sleep(ctx, 2*latency); err != nil {
				out <- dispatch.Outcome[int]{Err: err}
				return
			}
			out <- dispatch.Outcome[int]{Value: len(cmd)}
		}()
		return out
	})

	a.summarize = dispatch.WrapStream(tracer, dispatch.StreamConfig[string, int]{
		Config: dispatch.Config{TraceType: eventtrace.Step, TraceName: "summarize"},
		Reduce: func(n int, line string) int { return n + len(line) },
	}, func(ctx context.Context, words []string) <-chan dispatch.Chunk[string] {
		out := make(chan dispatch.Chunk[string])
		go func() {
			defer close(out)
			for _, w := range words {
				select {
				case out <- dispatch.Chunk[string]{Item: strings.ToUpper(w)}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	})

	a.handle = dispatch.WrapFunc(tracer, dispatch.Config{
		TraceType: eventtrace.AgentCall,
		TraceName: "handle-request",
	}, a.run)

	return a
}

func (a *agent) run(ctx context.Context, prompt string) (string, error) {
	var answer strings.Builder
	for d, err := range a.generate(ctx, prompt) {
		if err != nil {
			return "", fmt.Errorf("generating: %w", err)
		}
		answer.WriteString(d.Text)
	}

	hits, err := a.lookup(ctx, answer.String())
	if err != nil {
		return "", fmt.Errorf("looking up: %w", err)
	}

	res, ok := <-a.sandbox(ctx, "echo "+prompt)
	if !ok {
		return "", fmt.Errorf("sandbox returned no outcome")
	}
	if res.Err != nil {
		return "", fmt.Errorf("running sandbox: %w", res.Err)
	}

	var summary []string
	for c := range a.summarize(ctx, hits) {
		if c.Err != nil {
			return "", fmt.Errorf("summarizing: %w", c.Err)
		}
		summary = append(summary, c.Item)
	}
	return fmt.Sprintf("%s (exit %d)", strings.Join(summary, " "), res.Value), nil
}

// fakeModel streams a canned answer one word at a time.
func fakeModel(ctx context.Context, prompt string, latency time.Duration) iter.Seq2[delta, error] {
	return func(yield func(delta, error) bool) {
		words := strings.Fields("you asked about " + prompt)
		for i, w := range words {
			if err := sleep(ctx, latency); err != nil {
				yield(delta{}, err)
				return
			}
			d := delta{Text: w + " "}
			if i == len(words)-1 {
				d.Text = w
				d.FinishReason = "stop"
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
