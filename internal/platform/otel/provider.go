// Package otel wires OpenTelemetry tracing and metrics for the turn engine.
package otel

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup initialises OpenTelemetry tracing and metrics for the given service.
//
// Both are opt-in: when QUANTUMTURN_OTEL_ENDPOINT is empty or
// QUANTUMTURN_OTEL_ENABLED is "false", Setup returns a no-op shutdown
// function and no global providers are registered. Metrics are always
// exposed on QUANTUMTURN_METRICS_ADDR (default ":9090") once enabled,
// independent of the trace exporter endpoint being reachable.
//
// The returned shutdown function flushes pending spans and metrics and
// should be deferred by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv("QUANTUMTURN_OTEL_ENABLED"), "false") {
		return noop, nil
	}

	endpoint := os.Getenv("QUANTUMTURN_OTEL_ENDPOINT")
	if endpoint == "" {
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	promExporter, err := prometheus.New()
	if err != nil {
		return tp.Shutdown, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	addr := os.Getenv("QUANTUMTURN_METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()

	return func(shutdownCtx context.Context) error {
		if srvErr := srv.Shutdown(shutdownCtx); srvErr != nil {
			return fmt.Errorf("shutdown metrics server: %w", srvErr)
		}
		if mpErr := mp.Shutdown(shutdownCtx); mpErr != nil {
			return mpErr
		}
		return tp.Shutdown(shutdownCtx)
	}, nil
}
