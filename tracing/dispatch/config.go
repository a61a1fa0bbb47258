/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import (
	"errors"
	"fmt"

	"chainguard.dev/tracecore/tracing/aggregate"
	"chainguard.dev/tracecore/tracing/eventtrace"
)

// ErrInvalidConfig is returned by Validate for unusable configurations.
var ErrInvalidConfig = errors.New("invalid trace configuration")

// Config describes how calls are recorded.
type Config struct {
	TraceType eventtrace.TraceType
	TraceName string
	// Attributes are set on every event opened for the wrapped callable.
	Attributes map[string]any
	// OmitInput leaves the start payload empty, for inputs that should not be
	// handed to sinks.
	OmitInput bool
}

// Validate checks that the configuration names the events it produces.
func (c Config) Validate() error {
	if c.TraceType == "" {
		return fmt.Errorf("%w: trace type is required", ErrInvalidConfig)
	}
	if c.TraceName == "" {
		return fmt.Errorf("%w: trace name is required", ErrInvalidConfig)
	}
	return nil
}

// StreamConfig extends Config for sequence-producing callables.
type StreamConfig[T, R any] struct {
	Config

	// CompletionReason extracts a terminal-state classification from an item.
	// It reports false for items that carry none; the last reason wins.
	CompletionReason func(T) (string, bool)
	// Merge combines the full ordered sequence of items into the event's end
	// payload.
	Merge func([]T) R
	// Reduce folds items incrementally instead of buffering them for Merge.
	// When set it takes precedence, starting from Initial.
	Reduce  func(R, T) R
	Initial R
}

func (c StreamConfig[T, R]) aggregator() *aggregate.Aggregator[T, R] {
	var opts []aggregate.Option[T, R]
	if c.CompletionReason != nil {
		opts = append(opts, aggregate.WithCompletionReason[T, R](c.CompletionReason))
	}
	switch {
	case c.Reduce != nil:
		opts = append(opts, aggregate.WithReducer(c.Initial, c.Reduce))
	case c.Merge != nil:
		opts = append(opts, aggregate.WithMerge(c.Merge))
	}
	return aggregate.New(opts...)
}

// streamAttributes are the final attributes of a finished stream event.
func streamAttributes[R any](res aggregate.Result[R]) map[string]any {
	attrs := map[string]any{
		eventtrace.AttrCompletionReason: res.CompletionReason,
		eventtrace.AttrFirstItemLatency: res.FirstItemLatency.Milliseconds(),
		eventtrace.AttrItemCount:        res.Items,
		eventtrace.AttrPartial:          res.Partial,
	}
	if res.Err != nil {
		attrs[eventtrace.AttrAggregateError] = res.Err.Error()
	}
	return attrs
}

// endPayload is the merged value, or nil when nothing could be merged.
func endPayload[R any](res aggregate.Result[R]) any {
	if !res.HasValue {
		return nil
	}
	return res.Value
}
