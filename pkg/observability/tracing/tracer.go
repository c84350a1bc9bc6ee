// Package tracing provides OpenTelemetry tracing for Cosmos DB operations.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider wraps the OpenTelemetry tracer provider with lifecycle management.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	config   TracerConfig
}

// TracerConfig holds configuration for the tracer provider.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	Endpoint string
	// Secure enables TLS towards the collector.
	Secure bool

	// SampleRate is the fraction of traces to sample (0.0 to 1.0).
	SampleRate float64
	Enabled    bool
}

func (c TracerConfig) validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	if c.Endpoint == "" {
		return errors.New("OTLP endpoint is required")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}
	return nil
}

// NewTracerProvider builds a provider exporting to an OTLP collector and installs it
// globally. When tracing is disabled it returns a provider that exports nothing.
func NewTracerProvider(ctx context.Context, cfg TracerConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{
			provider: sdktrace.NewTracerProvider(),
			config:   cfg,
		}, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if !cfg.Secure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &TracerProvider{
		provider: provider,
		config:   cfg,
	}, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	return tp.provider.Tracer(name)
}

// Shutdown flushes pending spans and stops the provider. It waits at most 10 seconds.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := tp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

func (tp *TracerProvider) ForceFlush(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	if err := tp.provider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("failed to flush tracer provider: %w", err)
	}
	return nil
}
