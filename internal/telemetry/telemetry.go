package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/moodlesec/moodlescan/internal/config"
)

// Telemetry records probe activity as traces and metrics.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordProbe(ctx context.Context, check string, duration time.Duration)
	RecordFinding(ctx context.Context, severity string)
	Shutdown(ctx context.Context) error
}

type telemetry struct {
	tracer         trace.Tracer
	meter          metric.Meter
	tracerProvider *sdktrace.TracerProvider

	probeCounter   metric.Int64Counter
	probeDuration  metric.Float64Histogram
	findingCounter metric.Int64Counter
}

func New(ctx context.Context, cfg config.TelemetryConfig) (Telemetry, error) {
	if !cfg.Enabled {
		return &noopTelemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter

	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(cfg.ServiceName)
	meter := otel.Meter(cfg.ServiceName)

	probeCounter, err := meter.Int64Counter("moodlescan.probes.total",
		metric.WithDescription("Total number of probe checks executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram("moodlescan.probe.duration",
		metric.WithDescription("Probe check duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	findingCounter, err := meter.Int64Counter("moodlescan.findings.total",
		metric.WithDescription("Total number of findings"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:         tracer,
		meter:          meter,
		tracerProvider: tp,
		probeCounter:   probeCounter,
		probeDuration:  probeDuration,
		findingCounter: findingCounter,
	}, nil
}

func (t *telemetry) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

func (t *telemetry) RecordProbe(ctx context.Context, check string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("check", check))
	t.probeCounter.Add(ctx, 1, attrs)
	t.probeDuration.Record(ctx, duration.Seconds(), attrs)
}

func (t *telemetry) RecordFinding(ctx context.Context, severity string) {
	t.findingCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", severity)))
}

func (t *telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

type noopTelemetry struct{}

func (n *noopTelemetry) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (n *noopTelemetry) RecordProbe(ctx context.Context, check string, duration time.Duration) {}

func (n *noopTelemetry) RecordFinding(ctx context.Context, severity string) {}

func (n *noopTelemetry) Shutdown(ctx context.Context) error { return nil }
