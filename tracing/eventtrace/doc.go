/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package eventtrace records instrumented invocations as events and fans their
lifecycle out to pluggable handlers.

# Overview

  - Snapshot: immutable record of one invocation (type, name, correlation id,
    parent, payloads, attributes, log lines, status, timing)
  - EventContext: live handle used while the invocation runs
  - Handler / HandlerSet: ordered sinks receiving OnStart, OnLog, OnEnd and
    OnError
  - Tracer: opens events, pushes the correlation scope, notifies handlers

Every event that is opened reaches exactly one of StatusSucceeded or
StatusFailed. A panicking handler is logged and skipped; it never affects the
remaining handlers or the traced call.

# Usage

	tracer := eventtrace.New(eventtrace.WithHandlers(sink))

	ctx, ev := tracer.Begin(ctx, eventtrace.ToolCall, "read-file", params)
	defer func() { ev.Close(result, err) }()

	ev.SetAttribute("path", path)
	ev.Log("cache miss")

Most callers do not drive events by hand; the dispatch package wraps
functions, asynchronous calls and sequences.
*/
package eventtrace
