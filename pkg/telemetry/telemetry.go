// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires the OpenTelemetry SDK and trace-aware slog
// logging for arena runs.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/arenakit/arena/pkg/errors"
)

// ShutdownFunc flushes and stops the telemetry providers.
type ShutdownFunc func(context.Context) error

// Config controls telemetry exporter behavior. An empty Exporter means
// stdout.
type Config struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

// Init installs global tracer and meter providers for the run and returns
// the shutdown hook. Metrics are flushed once a minute; a tournament run
// is short, so the final flush at shutdown carries most of the data.
func Init(serviceName, version string, cfg Config) (ShutdownFunc, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := newTraceExporter(cfg)
	if err != nil {
		return nil, err
	}
	metricExporter, err := newMetricExporter(cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(time.Minute))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("telemetry shutdown errors: %v", errs)
		}
		return nil
	}, nil
}

func newTraceExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		opts, err := otlpTraceOptions(cfg)
		if err != nil {
			return nil, err
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, errors.New(errors.CodeInvalidConfig, "unknown telemetry exporter", nil).
			WithContext("exporter", cfg.Exporter)
	}
}

func newMetricExporter(cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		return stdoutmetric.New()
	case "otlp":
		if cfg.OTLPEndpoint == "" {
			return nil, errors.New(errors.CodeInvalidConfig, "otlp endpoint is required", nil)
		}
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, errors.New(errors.CodeInvalidConfig, "unknown telemetry exporter", nil).
			WithContext("exporter", cfg.Exporter)
	}
}

func otlpTraceOptions(cfg Config) ([]otlptracegrpc.Option, error) {
	if cfg.OTLPEndpoint == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "otlp endpoint is required", nil)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts, nil
}
