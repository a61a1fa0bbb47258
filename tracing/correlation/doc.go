/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package correlation carries the correlation id and common attributes of an
execution branch.

The store is branch-local: values live in a context.Context, so a goroutine
only observes the scope it was handed and concurrent requests never see each
other's ids. Every traced invocation pushes a child scope derived from the
current one; the parent is never modified.

# Usage

Bind an id once per inbound request, before any traced work begins:

	ctx = correlation.WithCorrelationID(ctx, requestID)
	ctx = correlation.WithCommonAttributes(ctx, map[string]any{
		"user": userID,
	})

Read it anywhere below:

	id, ok := correlation.CorrelationID(ctx)
	attrs := correlation.CommonAttributes(ctx)

Process-wide attributes (service identity and the like) are set once at
startup with SetGlobalAttributes and are merged underneath every scope.
*/
package correlation
