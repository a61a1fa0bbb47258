/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package otelattr converts event attributes to OpenTelemetry attributes.
package otelattr

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Prefix namespaces event attributes on spans and metrics.
const Prefix = "tracecore."

// FromMap converts attrs to key-values sorted by key, each key prefixed with
// prefix. Values without a native attribute type are stringified.
func FromMap(prefix string, attrs map[string]any) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		out = append(out, KeyValue(prefix+k, attrs[k]))
	}
	return out
}

// KeyValue converts a single value.
func KeyValue(key string, v any) attribute.KeyValue {
	switch x := v.(type) {
	case string:
		return attribute.String(key, x)
	case bool:
		return attribute.Bool(key, x)
	case int:
		return attribute.Int(key, x)
	case int32:
		return attribute.Int64(key, int64(x))
	case int64:
		return attribute.Int64(key, x)
	case uint32:
		return attribute.Int64(key, int64(x))
	case float32:
		return attribute.Float64(key, float64(x))
	case float64:
		return attribute.Float64(key, x)
	case time.Duration:
		return attribute.String(key, x.String())
	case []string:
		return attribute.StringSlice(key, x)
	case nil:
		return attribute.String(key, "")
	case fmt.Stringer:
		return attribute.String(key, x.String())
	default:
		return attribute.String(key, fmt.Sprint(x))
	}
}
