/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package eventtrace

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrAlreadyClosed is returned when an EventContext is closed a second time.
// It indicates a bug in the code driving the event, never a runtime condition.
var ErrAlreadyClosed = errors.New("event already closed")

// ErrorInfo describes the error that failed an event.
type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	// Err is the original error, kept for handlers that export it.
	Err error `json:"-"`
}

// NewErrorInfo captures err together with the current goroutine's stack.
// Errors created from a recovered panic carry the stack of the panic instead.
func NewErrorInfo(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}
	info := ErrorInfo{
		Type:    fmt.Sprintf("%T", err),
		Message: err.Error(),
		Err:     err,
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		info.Stack = string(pe.Stack)
	} else {
		info.Stack = string(debug.Stack())
	}
	return info
}

// PanicError wraps a value recovered from a panic in instrumented code.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError records v and the stack of the panicking goroutine.
// It must be called from the deferred function that recovered v.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
