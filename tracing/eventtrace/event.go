/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package eventtrace

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TraceType categorizes an event. The set is open: any string is accepted.
type TraceType string

const (
	ModelCall   TraceType = "MODEL_CALL"
	ToolCall    TraceType = "TOOL_CALL"
	Step        TraceType = "STEP"
	AgentCall   TraceType = "AGENT_CALL"
	SandboxCall TraceType = "SANDBOX_CALL"
)

// Status is the lifecycle state of an event.
type Status string

const (
	StatusOpen      Status = "open"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Attribute keys written by the dispatch adapters when a stream finishes.
const (
	AttrCompletionReason = "completion_reason"
	AttrFirstItemLatency = "first_item_latency_ms"
	AttrItemCount        = "item_count"
	AttrPartial          = "partial"
	AttrAggregateError   = "aggregate_error"
)

// LogEntry is an intermediate message emitted while an event is open.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Snapshot is an immutable copy of an event, handed to handlers.
type Snapshot struct {
	ID            string    `json:"id"`
	ParentID      string    `json:"parent_id,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	TraceType     TraceType `json:"trace_type"`
	TraceName     string    `json:"trace_name"`

	StartPayload any `json:"start_payload,omitempty"`
	EndPayload   any `json:"end_payload,omitempty"`

	Attributes       map[string]any `json:"attributes,omitempty"`
	CommonAttributes map[string]any `json:"common_attributes,omitempty"`
	LogEntries       []LogEntry     `json:"log_entries,omitempty"`

	Status  Status     `json:"status"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Partial bool       `json:"partial,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Duration returns the interval between start and end, or zero while open.
func (s Snapshot) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// AllAttributes returns the common attributes overlaid with the event's own.
func (s Snapshot) AllAttributes() map[string]any {
	out := make(map[string]any, len(s.CommonAttributes)+len(s.Attributes))
	maps.Copy(out, s.CommonAttributes)
	maps.Copy(out, s.Attributes)
	return out
}

// clone deep-copies the mutable parts of the snapshot.
func (s Snapshot) clone() Snapshot {
	s.Attributes = maps.Clone(s.Attributes)
	s.CommonAttributes = maps.Clone(s.CommonAttributes)
	s.LogEntries = slices.Clone(s.LogEntries)
	if s.Error != nil {
		e := *s.Error
		s.Error = &e
	}
	return s
}

// String returns a short human readable representation of the event.
func (s Snapshot) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s [%s] id=%s", s.TraceType, s.TraceName, s.Status, s.ID)
	if s.ParentID != "" {
		fmt.Fprintf(&sb, " parent=%s", s.ParentID)
	}
	fmt.Fprintf(&sb, " correlation=%s", s.CorrelationID)
	if !s.EndTime.IsZero() {
		fmt.Fprintf(&sb, " duration=%v", s.Duration())
	}
	if s.Error != nil {
		fmt.Fprintf(&sb, " error=%q", s.Error.Message)
	}
	return sb.String()
}

// generateEventID returns a fresh event id.
func generateEventID() string {
	return uuid.NewString()
}
