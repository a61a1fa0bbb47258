/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metricsink records OpenTelemetry metrics for traced events.
//
// The handler is registered alongside the other sinks:
//
//	tracer := eventtrace.New(eventtrace.WithHandlers(
//		metricsink.New(metricsink.WithAttributeEnricher(
//			func(ctx context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
//				return append(attrs, attribute.String("tenant", tenantFrom(ctx)))
//			})),
//	))
//
// Metrics use the global MeterProvider unless WithMeterProvider is given.
package metricsink
