/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package buffered moves handler work off the traced call path.
//
// A Handler queues every callback on a bounded channel consumed by a single
// background worker, so callbacks reach the wrapped handler in the order they
// were issued. When the queue is full the callback is dropped and counted.
package buffered

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// DefaultSize is the queue capacity used when New is given a size below one.
const DefaultSize = 1024

// Handler is an asynchronous eventtrace.Handler wrapping another Handler.
type Handler struct {
	next  eventtrace.Handler
	queue chan func()

	done    chan struct{}
	stopped chan struct{}
	// mu orders enqueues against Close: nothing is queued once done is closed.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
}

var _ eventtrace.Handler = (*Handler)(nil)

// New starts the worker delivering callbacks to next.
func New(next eventtrace.Handler, size int) *Handler {
	if size < 1 {
		size = DefaultSize
	}
	h := &Handler{
		next:    next,
		queue:   make(chan func(), size),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go h.runLoop()
	return h
}

// OnStart implements eventtrace.Handler
func (h *Handler) OnStart(ctx context.Context, ev eventtrace.Snapshot) {
	ctx = context.WithoutCancel(ctx)
	h.enqueue(ctx, func() { h.next.OnStart(ctx, ev) })
}

// OnEnd implements eventtrace.Handler
func (h *Handler) OnEnd(ctx context.Context, ev eventtrace.Snapshot) {
	ctx = context.WithoutCancel(ctx)
	h.enqueue(ctx, func() { h.next.OnEnd(ctx, ev) })
}

// OnLog implements eventtrace.Handler
func (h *Handler) OnLog(ctx context.Context, ev eventtrace.Snapshot, entry eventtrace.LogEntry) {
	ctx = context.WithoutCancel(ctx)
	h.enqueue(ctx, func() { h.next.OnLog(ctx, ev, entry) })
}

// OnError implements eventtrace.Handler
func (h *Handler) OnError(ctx context.Context, ev eventtrace.Snapshot, info eventtrace.ErrorInfo) {
	ctx = context.WithoutCancel(ctx)
	h.enqueue(ctx, func() { h.next.OnError(ctx, ev, info) })
}

// Dropped returns how many callbacks were discarded because the queue was
// full or the handler was closed.
func (h *Handler) Dropped() int64 {
	return h.dropped.Load()
}

// Failed returns how many callbacks panicked in the wrapped handler.
func (h *Handler) Failed() int64 {
	return h.failed.Load()
}

// Close stops accepting callbacks and waits until the queued ones have been
// delivered, or ctx is done.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	h.mu.Unlock()

	select {
	case <-h.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) enqueue(ctx context.Context, cb func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.queue <- cb:
	default:
		if h.dropped.Add(1) == 1 {
			clog.FromContext(ctx).Warn("Trace handler queue full, dropping callbacks")
		}
	}
}

func (h *Handler) runLoop() {
	defer close(h.stopped)
	for {
		select {
		case cb := <-h.queue:
			h.run(cb)
		case <-h.done:
			// Flush remaining
			for {
				select {
				case cb := <-h.queue:
					h.run(cb)
				default:
					return
				}
			}
		}
	}
}

// run delivers one callback. A panicking handler must not stop the worker.
func (h *Handler) run(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			h.failed.Add(1)
			clog.FromContext(context.Background()).With("panic", r).
				Warn("Buffered trace handler failed")
		}
	}()
	cb()
}
