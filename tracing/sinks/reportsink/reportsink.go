/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reportsink summarizes traced events in memory and renders the
// summary as a markdown table.
package reportsink

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"chainguard.dev/tracecore/tracing/eventtrace"
)

// Key identifies one row of the report.
type Key struct {
	TraceType eventtrace.TraceType
	TraceName string
}

// Row is the summary of all finished events sharing a Key.
type Row struct {
	Key
	Count    int
	Failures int
	Partial  int
	Logs     int
	Total    time.Duration
}

// Average is the mean duration of the summarized events.
func (r Row) Average() time.Duration {
	if r.Count == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Count)
}

// Handler is an eventtrace.Handler that aggregates finished events.
type Handler struct {
	mu   sync.Mutex
	rows map[Key]*Row
}

var _ eventtrace.Handler = (*Handler)(nil)

// New creates an empty report.
func New() *Handler {
	return &Handler{rows: make(map[Key]*Row)}
}

// OnStart implements eventtrace.Handler
func (h *Handler) OnStart(context.Context, eventtrace.Snapshot) {}

// OnLog implements eventtrace.Handler
func (h *Handler) OnLog(_ context.Context, ev eventtrace.Snapshot, _ eventtrace.LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.row(ev).Logs++
}

// OnEnd implements eventtrace.Handler
func (h *Handler) OnEnd(_ context.Context, ev eventtrace.Snapshot) {
	h.add(ev)
}

// OnError implements eventtrace.Handler
func (h *Handler) OnError(_ context.Context, ev eventtrace.Snapshot, _ eventtrace.ErrorInfo) {
	h.add(ev)
}

func (h *Handler) add(ev eventtrace.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.row(ev)
	r.Count++
	r.Total += ev.Duration()
	if ev.Status == eventtrace.StatusFailed {
		r.Failures++
	}
	if ev.Partial {
		r.Partial++
	}
}

// row must be called with mu held.
func (h *Handler) row(ev eventtrace.Snapshot) *Row {
	k := Key{TraceType: ev.TraceType, TraceName: ev.TraceName}
	r, ok := h.rows[k]
	if !ok {
		r = &Row{Key: k}
		h.rows[k] = r
	}
	return r
}

// Rows returns a copy of the summary ordered by trace type, then name.
func (h *Handler) Rows() []Row {
	h.mu.Lock()
	out := make([]Row, 0, len(h.rows))
	for _, r := range h.rows {
		out = append(out, *r)
	}
	h.mu.Unlock()

	slices.SortFunc(out, func(a, b Row) int {
		return cmp.Or(
			cmp.Compare(a.TraceType, b.TraceType),
			cmp.Compare(a.TraceName, b.TraceName),
		)
	})
	return out
}

// Render writes the summary to w as a markdown table.
func (h *Handler) Render(w io.Writer) error {
	table := createStandardTable([]string{"Type", "Name", "Count", "Failed", "Partial", "Logs", "Avg", "Total"}, w)
	for _, r := range h.Rows() {
		row := []string{
			string(r.TraceType),
			r.TraceName,
			fmt.Sprintf("%d", r.Count),
			fmt.Sprintf("%d", r.Failures),
			fmt.Sprintf("%d", r.Partial),
			fmt.Sprintf("%d", r.Logs),
			r.Average().Round(time.Microsecond).String(),
			r.Total.Round(time.Microsecond).String(),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("appending report row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

// createStandardTable creates a table writer with the report's formatting.
func createStandardTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
