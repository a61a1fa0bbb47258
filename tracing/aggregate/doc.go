/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package aggregate merges the partial outputs of a stream into one value
// while the items themselves pass through to their consumer untouched.
//
// An Aggregator tracks the latency of the first item, the completion reason
// reported by the items (last non-empty reason wins) and either buffers the
// items for a merge function or folds them incrementally with a reducer.
package aggregate
