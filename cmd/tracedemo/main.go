/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs simulated agent requests through the tracing core and
// prints a summary of the recorded events.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/tracecore/tracing/config"
	"chainguard.dev/tracecore/tracing/correlation"
	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/sinks/reportsink"
)

type demoConfig struct {
	Requests     int           `env:"DEMO_REQUESTS,default=2"`
	Latency      time.Duration `env:"DEMO_LATENCY,default=5ms"`
	MetricsPort  int           `env:"METRICS_PORT,default=0"`
	OTLPEndpoint string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// demoDefaults turn on every sink unless the environment says otherwise.
var demoDefaults = map[string]string{
	"TRACECORE_SERVICE_NAME":           "tracedemo",
	"TRACECORE_ENABLE_OTEL_SINK":       "true",
	"TRACECORE_ENABLE_METRICS_SINK":    "true",
	"TRACECORE_ENABLE_PROMETHEUS_SINK": "true",
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var demo demoConfig
	if err := envconfig.Process(ctx, &demo); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	cfg, err := config.LoadFrom(ctx, envconfig.MultiLookuper(
		envconfig.OsLookuper(),
		envconfig.MapLookuper(demoDefaults),
	))
	if err != nil {
		clog.FatalContextf(ctx, "loading trace config: %v", err)
	}

	spans := newSpanLogger(clog.FromContext(ctx))
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(spans)}
	if demo.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx)
		if err != nil {
			clog.FatalContextf(ctx, "creating OTLP exporter: %v", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
		clog.InfoContextf(ctx, "Exporting spans to %s", demo.OTLPEndpoint)
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	reg := prometheus.NewRegistry()
	if demo.MetricsPort != 0 {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", demo.MetricsPort),
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				clog.ErrorContextf(ctx, "metrics server: %v", err)
			}
		}()
		defer srv.Shutdown(context.WithoutCancel(ctx)) //nolint:errcheck
	}

	report := reportsink.New()
	tracer, shutdown, err := cfg.NewTracer(ctx, config.Deps{
		LogWriter:      os.Stderr,
		TracerProvider: tp,
		MeterProvider:  mp,
		Registerer:     reg,
		Extra:          []eventtrace.Handler{report},
	})
	if err != nil {
		clog.FatalContextf(ctx, "creating tracer: %v", err)
	}

	a := newAgent(tracer, demo.Latency)
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range demo.Requests {
		id := fmt.Sprintf("req-%c", 'A'+rune(i%26))
		eg.Go(func() error {
			rctx := correlation.WithCorrelationID(egCtx, id)
			rctx = correlation.WithCommonAttributes(rctx, map[string]any{"request": i})
			answer, err := a.handle(rctx, fmt.Sprintf("question %d", i))
			if err != nil {
				return fmt.Errorf("request %s: %w", id, err)
			}
			clog.InfoContextf(ctx, "Request %s answered: %s", id, answer)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		clog.ErrorContextf(ctx, "running requests: %v", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer flushCancel()
	if err := shutdown(flushCtx); err != nil {
		clog.WarnContextf(ctx, "draining trace sinks: %v", err)
	}
	if err := tp.Shutdown(flushCtx); err != nil {
		clog.WarnContextf(ctx, "shutting down tracer provider: %v", err)
	}

	clog.FromContext(ctx).With("spans", spans.Ended()).Debug("Spans recorded")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(flushCtx, &rm); err != nil {
		clog.WarnContextf(ctx, "collecting metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			clog.FromContext(ctx).With("metric", m.Name).Debug("Recorded metric")
		}
	}

	if err := report.Render(os.Stdout); err != nil {
		clog.FatalContextf(ctx, "rendering report: %v", err)
	}
}
