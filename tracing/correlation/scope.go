/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package correlation

import (
	"context"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Scope is the correlation binding of one execution branch: the correlation
// id shared by every event nested under the root invocation plus the common
// attributes attached by the code that started it.
//
// The binding of a Scope is never mutated after it is created. Setting a value
// derives a new Scope, so a child can never change what its parent observes.
// The only state that changes is the closed flag, set once when the work the
// scope was pushed for is done.
type Scope struct {
	id     string
	attrs  map[string]any
	depth  int
	parent *Scope
	closed atomic.Bool
}

// ID returns the correlation id, or "" when none was set.
func (s *Scope) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Attributes returns a copy of the common attributes bound to this scope.
// The process-wide snapshot is not included; see CommonAttributes.
func (s *Scope) Attributes() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	return maps.Clone(s.attrs)
}

// Depth is the number of pushes between this scope and the root binding.
func (s *Scope) Depth() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Parent returns the scope that was active before this one was pushed.
func (s *Scope) Parent() *Scope {
	if s == nil {
		return nil
	}
	return s.parent
}

// Close marks the scope as popped. It reports false if it already was.
func (s *Scope) Close() bool {
	if s == nil {
		return false
	}
	return s.closed.CompareAndSwap(false, true)
}

// Closed reports whether the scope was popped. A context still carrying a
// closed scope is being used after its work finished.
func (s *Scope) Closed() bool {
	return s != nil && s.closed.Load()
}

// scopeKey is used for storing the active scope in context.Context
type scopeKey struct{}

// FromContext returns the active scope, or nil when the context carries none.
func FromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

func withScope(ctx context.Context, s *Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithCorrelationID binds id as the correlation id of the returned context.
// The current scope's attributes and nesting are kept.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	cur := FromContext(ctx)
	next := &Scope{id: id}
	if cur != nil {
		next.attrs = cur.attrs
		next.depth = cur.depth
		next.parent = cur.parent
	}
	return withScope(ctx, next)
}

// CorrelationID returns the correlation id bound to ctx.
func CorrelationID(ctx context.Context) (string, bool) {
	s := FromContext(ctx)
	if s == nil || s.id == "" {
		return "", false
	}
	return s.id, true
}

// WithCommonAttributes merges attrs into the attributes of the current scope
// and binds the result to the returned context. Existing keys are overwritten,
// other keys are kept. Values are normalized to scalars (see Normalize).
func WithCommonAttributes(ctx context.Context, attrs map[string]any) context.Context {
	cur := FromContext(ctx)
	next := &Scope{}
	merged := make(map[string]any, len(attrs))
	if cur != nil {
		next.id = cur.id
		next.depth = cur.depth
		next.parent = cur.parent
		maps.Copy(merged, cur.attrs)
	}
	for k, v := range attrs {
		merged[k] = Normalize(v)
	}
	next.attrs = merged
	return withScope(ctx, next)
}

// CommonAttributes returns the process-wide attributes overlaid with the
// attributes of the active scope. The returned map is a copy.
func CommonAttributes(ctx context.Context) map[string]any {
	out := GlobalAttributes()
	if s := FromContext(ctx); s != nil {
		maps.Copy(out, s.attrs)
	}
	return out
}

// Push derives a child scope from the one bound to ctx. The child inherits the
// correlation id and attributes of its parent; a fresh id is generated only
// when no id is active yet. The parent scope stays untouched, so returning to
// the original ctx restores it exactly.
func Push(ctx context.Context) (context.Context, *Scope) {
	cur := FromContext(ctx)
	child := &Scope{parent: cur}
	if cur != nil {
		child.id = cur.id
		child.attrs = cur.attrs
		child.depth = cur.depth + 1
	} else {
		child.depth = 1
	}
	if child.id == "" {
		child.id = NewID()
	}
	return withScope(ctx, child), child
}

// NewID generates a correlation id.
func NewID() string {
	return uuid.NewString()
}

// Normalize reduces an attribute value to a string or scalar.
// Unsupported values are formatted with fmt.
func Normalize(v any) any {
	switch v := v.(type) {
	case nil:
		return ""
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case time.Duration:
		return v.String()
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}
