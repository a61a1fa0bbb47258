/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config builds a tracer and its sinks from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chainguard.dev/tracecore/tracing/correlation"
	"chainguard.dev/tracecore/tracing/eventtrace"
	"chainguard.dev/tracecore/tracing/sinks/buffered"
	"chainguard.dev/tracecore/tracing/sinks/logsink"
	"chainguard.dev/tracecore/tracing/sinks/metricsink"
	"chainguard.dev/tracecore/tracing/sinks/otelsink"
	"chainguard.dev/tracecore/tracing/sinks/promsink"
)

// Global attribute keys set by Apply.
const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
)

// Config selects the sinks and the process-wide attributes.
type Config struct {
	ServiceName    string `env:"TRACECORE_SERVICE_NAME,default=tracecore"`
	ServiceVersion string `env:"TRACECORE_SERVICE_VERSION"`

	EnableLogSink        bool `env:"TRACECORE_ENABLE_LOG_SINK,default=true"`
	EnableOtelSink       bool `env:"TRACECORE_ENABLE_OTEL_SINK,default=false"`
	EnableMetricsSink    bool `env:"TRACECORE_ENABLE_METRICS_SINK,default=false"`
	EnablePrometheusSink bool `env:"TRACECORE_ENABLE_PROMETHEUS_SINK,default=false"`

	// BufferSize moves every sink behind an asynchronous queue of this
	// capacity. Zero keeps the sinks synchronous.
	BufferSize int `env:"TRACECORE_BUFFER_SIZE,default=0"`

	// CommonAttributes are added to every event, as key:value pairs
	// separated by commas.
	CommonAttributes map[string]string `env:"TRACECORE_COMMON_ATTRIBUTES"`

	StrictLifecycle bool `env:"TRACECORE_STRICT_LIFECYCLE,default=false"`
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	return &cfg, cfg.validate()
}

// LoadFrom reads the configuration from l.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("TRACECORE_BUFFER_SIZE must not be negative, got %d", c.BufferSize)
	}
	return nil
}

// Deps are the collaborators the sinks report to. Zero values select the
// process defaults.
type Deps struct {
	// LogWriter receives the JSON records of the log sink. Defaults to stderr.
	LogWriter io.Writer
	// TracerProvider for the otel sink. Defaults to the global provider.
	TracerProvider trace.TracerProvider
	// MeterProvider for the metrics sink. Defaults to the global provider.
	MeterProvider metric.MeterProvider
	// Registerer for the prometheus sink. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Extra handlers are appended after the configured sinks.
	Extra []eventtrace.Handler
}

// Shutdown drains asynchronous sinks.
type Shutdown func(context.Context) error

// Handlers builds the enabled sinks, in a fixed order: log, otel, metrics,
// prometheus, then deps.Extra.
func (c *Config) Handlers(ctx context.Context, deps Deps) ([]eventtrace.Handler, Shutdown) {
	var hs []eventtrace.Handler

	if c.EnableLogSink {
		w := deps.LogWriter
		if w == nil {
			w = os.Stderr
		}
		hs = append(hs, logsink.New(w, logsink.WithService(c.ServiceName, c.ServiceVersion)))
	}
	if c.EnableOtelSink {
		var opts []otelsink.Option
		if deps.TracerProvider != nil {
			opts = append(opts, otelsink.WithTracerProvider(deps.TracerProvider))
		}
		hs = append(hs, otelsink.New(opts...))
	}
	if c.EnableMetricsSink {
		var opts []metricsink.Option
		if deps.MeterProvider != nil {
			opts = append(opts, metricsink.WithMeterProvider(deps.MeterProvider))
		}
		hs = append(hs, metricsink.New(opts...))
	}
	if c.EnablePrometheusSink {
		reg := deps.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		hs = append(hs, promsink.New(reg))
	}
	hs = append(hs, deps.Extra...)

	if c.BufferSize == 0 {
		return hs, func(context.Context) error { return nil }
	}

	queues := make([]*buffered.Handler, 0, len(hs))
	for i, h := range hs {
		q := buffered.New(h, c.BufferSize)
		queues = append(queues, q)
		hs[i] = q
	}
	clog.FromContext(ctx).With("sinks", len(hs)).
		With("buffer_size", c.BufferSize).
		Debug("Trace sinks buffered")

	return hs, func(ctx context.Context) error {
		var errs []error
		for _, q := range queues {
			if err := q.Close(ctx); err != nil {
				errs = append(errs, err)
			}
			if n := q.Dropped(); n > 0 {
				clog.FromContext(ctx).With("dropped", n).Warn("Trace callbacks were dropped")
			}
		}
		return errors.Join(errs...)
	}
}

// GlobalAttributes returns the attributes Apply installs.
func (c *Config) GlobalAttributes() map[string]any {
	attrs := make(map[string]any, len(c.CommonAttributes)+2)
	for k, v := range c.CommonAttributes {
		attrs[k] = v
	}
	attrs[AttrServiceName] = c.ServiceName
	if c.ServiceVersion != "" {
		attrs[AttrServiceVersion] = c.ServiceVersion
	}
	return attrs
}

// Apply installs the global attributes. It succeeds once per process.
func (c *Config) Apply() error {
	if err := correlation.SetGlobalAttributes(c.GlobalAttributes()); err != nil {
		return fmt.Errorf("applying trace config: %w", err)
	}
	return nil
}

// NewTracer applies c and returns a tracer reporting to the configured sinks.
func (c *Config) NewTracer(ctx context.Context, deps Deps) (*eventtrace.Tracer, Shutdown, error) {
	if err := c.Apply(); err != nil {
		return nil, nil, err
	}
	hs, shutdown := c.Handlers(ctx, deps)
	return eventtrace.New(
		eventtrace.WithHandlers(hs...),
		eventtrace.WithLogger(clog.FromContext(ctx)),
		eventtrace.WithStrictLifecycle(c.StrictLifecycle),
	), shutdown, nil
}
