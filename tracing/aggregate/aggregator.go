/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package aggregate

import (
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// UnknownReason is reported when no item carried a completion reason.
const UnknownReason = "unknown"

// Result is the outcome of a finalized stream.
type Result[R any] struct {
	// Value is the merged value. It is only meaningful when HasValue is set.
	Value    R
	HasValue bool
	// CompletionReason is the last non-empty reason extracted from an item,
	// or UnknownReason.
	CompletionReason string
	// FirstItemLatency is the time between the aggregator's creation and the
	// first observed item. Zero when no item was observed.
	FirstItemLatency time.Duration
	Items            int
	// Partial is set when the stream was abandoned before exhaustion.
	Partial bool
	// Err is set when the extractor, the reducer or the merge function
	// panicked. Value is then unset.
	Err error
}

// Option configures an Aggregator.
type Option[T, R any] func(*Aggregator[T, R])

// WithMerge merges the full ordered sequence of observed items on Finalize.
// Items are buffered until then.
func WithMerge[T, R any](merge func([]T) R) Option[T, R] {
	return func(a *Aggregator[T, R]) {
		a.merge = merge
	}
}

// WithReducer folds each item into an accumulator as it is observed, so no
// items are buffered. It takes precedence over WithMerge.
func WithReducer[T, R any](initial R, step func(R, T) R) Option[T, R] {
	return func(a *Aggregator[T, R]) {
		a.acc = initial
		a.step = step
	}
}

// WithCompletionReason extracts a completion reason from each item. The
// extractor reports false when the item carries no reason.
func WithCompletionReason[T, R any](extract func(T) (string, bool)) Option[T, R] {
	return func(a *Aggregator[T, R]) {
		a.extract = extract
	}
}

// WithClock sets the clock used to measure the first item latency.
func WithClock[T, R any](clock clockz.Clock) Option[T, R] {
	return func(a *Aggregator[T, R]) {
		a.clock = clock
	}
}

// Aggregator observes the items of one stream and produces a single merged
// value on Finalize. It never changes the items themselves; the caller
// forwards them to the consumer after Observe returns.
//
// Observe is meant to be called from the producing goroutine; Finalize may
// run on another goroutine (for instance when the stream is cancelled).
type Aggregator[T, R any] struct {
	mu      sync.Mutex
	clock   clockz.Clock
	started time.Time
	firstAt time.Time

	items   []T
	last    T
	count   int
	merge   func([]T) R
	step    func(R, T) R
	acc     R
	extract func(T) (string, bool)
	reason  string
	// err disables aggregation once a caller-supplied function panicked.
	err error

	finalized bool
	result    Result[R]
}

// New creates an Aggregator. The first-item latency is measured from now.
func New[T, R any](opts ...Option[T, R]) *Aggregator[T, R] {
	a := &Aggregator[T, R]{
		clock: clockz.RealClock,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.started = a.clock.Now()
	return a
}

// Observe records one produced item. Items observed after Finalize are ignored.
func (a *Aggregator[T, R]) Observe(item T) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return
	}
	if a.count == 0 {
		a.firstAt = a.clock.Now()
	}
	a.count++
	a.last = item

	if a.err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.err = fmt.Errorf("aggregation panicked: %v", r)
			a.items = nil
		}
	}()

	if a.extract != nil {
		// Last non-empty reason wins; conflicting reasons are not reconciled.
		if reason, ok := a.extract(item); ok && reason != "" {
			a.reason = reason
		}
	}

	switch {
	case a.step != nil:
		a.acc = a.step(a.acc, item)
	case a.merge != nil:
		a.items = append(a.items, item)
	}
}

// Count returns the number of items observed so far.
func (a *Aggregator[T, R]) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Finalize merges what was observed. partial marks a stream that was not
// exhausted. Only the first call computes the result; later calls return it
// unchanged.
func (a *Aggregator[T, R]) Finalize(partial bool) Result[R] {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return a.result
	}
	a.finalized = true

	res := Result[R]{
		CompletionReason: a.reason,
		Items:            a.count,
		Partial:          partial,
	}
	if res.CompletionReason == "" {
		res.CompletionReason = UnknownReason
	}
	if a.count > 0 {
		res.FirstItemLatency = a.firstAt.Sub(a.started)
	}

	if a.err != nil {
		res.Err = a.err
	} else {
		res.Value, res.HasValue, res.Err = a.value()
	}
	a.items = nil
	var zero T
	a.last = zero
	a.result = res
	return res
}

func (a *Aggregator[T, R]) value() (v R, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			v, ok, err = zero, false, fmt.Errorf("merge panicked: %v", r)
		}
	}()

	switch {
	case a.step != nil:
		return a.acc, true, nil
	case a.merge != nil:
		return a.merge(a.items), true, nil
	case a.count > 0:
		// Without a merge function the last item stands for the stream.
		last, ok := any(a.last).(R)
		return last, ok, nil
	default:
		return v, false, nil
	}
}
