/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package tracetest provides handlers for testing code that emits events:
// a Recorder that captures every callback and a Panicking handler for fault
// isolation checks.
package tracetest
