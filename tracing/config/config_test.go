/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"

	"chainguard.dev/tracecore/tracing/correlation"
	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/sinks/buffered"
	"chainguard.dev/tracecore/tracing/sinks/logsink"
	"chainguard.dev/tracecore/tracing/sinks/promsink"
	"chainguard.dev/tracecore/tracing/tracetest"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(nil))
	require.NoError(t, err)

	want := &Config{
		ServiceName:   "tracecore",
		EnableLogSink: true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadFrom (-want +got):\n%s", diff)
	}
}

func TestLoadFrom(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"TRACECORE_SERVICE_NAME":           "checkout",
		"TRACECORE_SERVICE_VERSION":        "v2",
		"TRACECORE_ENABLE_LOG_SINK":        "false",
		"TRACECORE_ENABLE_PROMETHEUS_SINK": "true",
		"TRACECORE_BUFFER_SIZE":            "16",
		"TRACECORE_COMMON_ATTRIBUTES":      "region:us-east1,tier:gold",
		"TRACECORE_STRICT_LIFECYCLE":       "true",
	}))
	require.NoError(t, err)

	want := &Config{
		ServiceName:          "checkout",
		ServiceVersion:       "v2",
		EnablePrometheusSink: true,
		BufferSize:           16,
		CommonAttributes:     map[string]string{"region": "us-east1", "tier": "gold"},
		StrictLifecycle:      true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadFrom (-want +got):\n%s", diff)
	}

	wantAttrs := map[string]any{
		"region":           "us-east1",
		"tier":             "gold",
		AttrServiceName:    "checkout",
		AttrServiceVersion: "v2",
	}
	if diff := cmp.Diff(wantAttrs, cfg.GlobalAttributes()); diff != "" {
		t.Errorf("GlobalAttributes (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsNegativeBuffer(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"TRACECORE_BUFFER_SIZE": "-1",
	}))
	require.Error(t, err)
}

func TestHandlers(t *testing.T) {
	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	rec := tracetest.NewRecorder()

	cfg := &Config{ServiceName: "svc", EnableLogSink: true, EnablePrometheusSink: true}
	hs, shutdown := cfg.Handlers(context.Background(), Deps{
		LogWriter:  &logs,
		Registerer: reg,
		Extra:      []eventtrace.Handler{rec},
	})
	require.Len(t, hs, 3)
	require.IsType(t, &logsink.Handler{}, hs[0])
	require.IsType(t, &promsink.Handler{}, hs[1])

	tracer := eventtrace.New(eventtrace.WithHandlers(hs...))
	_, ev := tracer.Begin(context.Background(), eventtrace.Step, "s", nil)
	require.NoError(t, ev.Close(nil, nil))
	require.NoError(t, shutdown(context.Background()))

	require.Contains(t, logs.String(), `"service":"svc"`)
	require.Equal(t, 1, rec.Count(tracetest.End))
	n, err := testutil.GatherAndCount(reg, "tracecore_events_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestHandlersBuffered(t *testing.T) {
	rec := tracetest.NewRecorder()
	cfg := &Config{BufferSize: 4}
	hs, shutdown := cfg.Handlers(context.Background(), Deps{Extra: []eventtrace.Handler{rec}})
	require.Len(t, hs, 1)
	require.IsType(t, &buffered.Handler{}, hs[0])

	tracer := eventtrace.New(eventtrace.WithHandlers(hs...))
	_, ev := tracer.Begin(context.Background(), eventtrace.Step, "s", nil)
	require.NoError(t, ev.Close(nil, nil))

	// Delivery is only guaranteed after shutdown.
	require.NoError(t, shutdown(context.Background()))
	require.Equal(t, []string{tracetest.Start, tracetest.End}, rec.Kinds())
}

// Globals are frozen once per process, so this is the only test applying
// a configuration.
func TestNewTracerAppliesOnce(t *testing.T) {
	rec := tracetest.NewRecorder()
	cfg := &Config{
		ServiceName:      "svc",
		ServiceVersion:   "1.0",
		CommonAttributes: map[string]string{"env": "test"},
	}
	tracer, shutdown, err := cfg.NewTracer(context.Background(), Deps{Extra: []eventtrace.Handler{rec}})
	require.NoError(t, err)

	_, ev := tracer.Begin(context.Background(), eventtrace.Step, "s", nil)
	require.NoError(t, ev.Close(nil, nil))
	require.NoError(t, shutdown(context.Background()))

	got := rec.Finished()[0].CommonAttributes
	want := map[string]any{"env": "test", AttrServiceName: "svc", AttrServiceVersion: "1.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("common attributes (-want +got):\n%s", diff)
	}

	require.ErrorIs(t, cfg.Apply(), correlation.ErrGlobalsFrozen)
}
