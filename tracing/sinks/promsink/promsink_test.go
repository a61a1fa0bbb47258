/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promsink_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/sinks/promsink"
)

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	tracer := eventtrace.New(eventtrace.WithHandlers(promsink.New(reg)))

	run := func(typ eventtrace.TraceType, err error) {
		_, ev := tracer.Begin(context.Background(), typ, "op", nil)
		ev.Log("progress")
		if cerr := ev.Close(nil, err); cerr != nil {
			t.Fatalf("Close: %v", cerr)
		}
	}
	run(eventtrace.ToolCall, nil)
	run(eventtrace.ToolCall, nil)
	run(eventtrace.ToolCall, errors.New("boom"))
	run(eventtrace.ModelCall, nil)

	expected := `
# HELP tracecore_events_total Total number of finished traced events
# TYPE tracecore_events_total counter
tracecore_events_total{status="failed",trace_type="TOOL_CALL"} 1
tracecore_events_total{status="succeeded",trace_type="MODEL_CALL"} 1
tracecore_events_total{status="succeeded",trace_type="TOOL_CALL"} 2
# HELP tracecore_handler_logs_total Total number of log entries emitted by traced events
# TYPE tracecore_handler_logs_total counter
tracecore_handler_logs_total{trace_type="MODEL_CALL"} 1
tracecore_handler_logs_total{trace_type="TOOL_CALL"} 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"tracecore_events_total", "tracecore_handler_logs_total"); err != nil {
		t.Error(err)
	}

	got, err := testutil.GatherAndCount(reg, "tracecore_event_duration_seconds")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if got != 2 {
		t.Errorf("duration series: got = %d, wanted = 2", got)
	}

	samples := map[string]uint64{}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "tracecore_event_duration_seconds" {
			continue
		}
		if family.GetType() != dto.MetricType_HISTOGRAM {
			t.Errorf("duration type: got = %v, wanted = %v", family.GetType(), dto.MetricType_HISTOGRAM)
		}
		for _, m := range family.GetMetric() {
			samples[labelValue(m, "trace_type")] = m.GetHistogram().GetSampleCount()
		}
	}
	if samples["TOOL_CALL"] != 3 || samples["MODEL_CALL"] != 1 {
		t.Errorf("duration samples: got = %v, wanted TOOL_CALL=3 MODEL_CALL=1", samples)
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	promsink.New(reg)

	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry did not panic")
		}
	}()
	promsink.New(reg)
}
