/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package logsink writes one structured JSON record per traced event.
package logsink

import (
	"context"
	"io"
	"log/slog"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Record field names.
const (
	FieldTimestamp     = "timestamp"
	FieldStep          = "step"
	FieldTraceType     = "trace_type"
	FieldCorrelationID = "correlation_id"
	FieldEventID       = "event_id"
	FieldParentID      = "parent_id"
	FieldAttributes    = "attributes"
	FieldIntervalMS    = "interval_ms"
	FieldStatus        = "status"
	FieldService       = "service"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldPartial       = "partial"
	FieldLog           = "log"
)

// Messages of the records written by the handler.
const (
	MsgStarted  = "Traced call started"
	MsgFinished = "Traced call finished"
	MsgLog      = "Traced call log"
)

// Handler is an eventtrace.Handler that emits JSON records. Finished events
// always produce a record; start records are opt-in.
type Handler struct {
	logger       *clog.Logger
	service      string
	version      string
	startRecords bool
	level        slog.Level
}

var _ eventtrace.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithService sets the service identity written on every record.
func WithService(name, version string) Option {
	return func(h *Handler) {
		h.service = name
		h.version = version
	}
}

// WithStartRecords enables a record when an event opens.
func WithStartRecords(enabled bool) Option {
	return func(h *Handler) {
		h.startRecords = enabled
	}
}

// WithLevel sets the level of successful records. Failed events are always
// written at error level.
func WithLevel(level slog.Level) Option {
	return func(h *Handler) {
		h.level = level
	}
}

// New creates a Handler writing JSON lines to w.
func New(w io.Writer, opts ...Option) *Handler {
	return NewWithLogger(clog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: renameTime,
	})), opts...)
}

// NewWithLogger creates a Handler writing to an existing logger.
func NewWithLogger(logger *clog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:  logger,
		service: "tracecore",
		level:   slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func renameTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		a.Key = FieldTimestamp
	}
	return a
}

// OnStart implements eventtrace.Handler
func (h *Handler) OnStart(ctx context.Context, ev eventtrace.Snapshot) {
	if !h.startRecords {
		return
	}
	h.logger.Log(ctx, h.level, MsgStarted, h.fields(ev)...)
}

// OnEnd implements eventtrace.Handler
func (h *Handler) OnEnd(ctx context.Context, ev eventtrace.Snapshot) {
	h.logger.Log(ctx, h.level, MsgFinished, h.fields(ev)...)
}

// OnLog implements eventtrace.Handler
func (h *Handler) OnLog(ctx context.Context, ev eventtrace.Snapshot, entry eventtrace.LogEntry) {
	args := append(h.identity(ev), FieldLog, entry.Message)
	h.logger.Log(ctx, slog.LevelDebug, MsgLog, args...)
}

// OnError implements eventtrace.Handler
func (h *Handler) OnError(ctx context.Context, ev eventtrace.Snapshot, info eventtrace.ErrorInfo) {
	args := append(h.fields(ev),
		FieldError, info.Message,
		FieldErrorType, info.Type,
	)
	h.logger.Log(ctx, slog.LevelError, MsgFinished, args...)
}

// identity is the subset of fields that locates an event.
func (h *Handler) identity(ev eventtrace.Snapshot) []any {
	return []any{
		FieldService, h.serviceName(),
		FieldStep, ev.TraceName,
		FieldTraceType, string(ev.TraceType),
		FieldCorrelationID, ev.CorrelationID,
		FieldEventID, ev.ID,
		FieldParentID, ev.ParentID,
	}
}

func (h *Handler) fields(ev eventtrace.Snapshot) []any {
	args := append(h.identity(ev),
		FieldStatus, string(ev.Status),
		FieldAttributes, ev.AllAttributes(),
	)
	if !ev.EndTime.IsZero() {
		args = append(args,
			FieldIntervalMS, ev.Duration().Milliseconds(),
			FieldPartial, ev.Partial,
		)
	}
	return args
}

func (h *Handler) serviceName() string {
	if h.version == "" {
		return h.service
	}
	return h.service + "@" + h.version
}
