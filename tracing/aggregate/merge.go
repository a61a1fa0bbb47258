/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package aggregate

import "strings"

// Concat joins string fragments, the usual merge for streamed text.
func Concat(items []string) string {
	var sb strings.Builder
	for _, s := range items {
		sb.WriteString(s)
	}
	return sb.String()
}

// AppendString is the incremental counterpart of Concat.
func AppendString(acc, item string) string {
	return acc + item
}

// Collect returns a copy of the observed items.
func Collect[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// Last returns the final observed item, or the zero value.
func Last[T any](items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[len(items)-1]
}
