// Package otel exports bridge observations as OpenTelemetry metrics and
// traces.
package otel

import (
	"context"
	"fmt"
	"os"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingConfig configures the OTLP trace pipeline.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector endpoint. When empty,
	// OTEL_EXPORTER_OTLP_ENDPOINT is consulted; if that is also unset,
	// tracing stays disabled.
	Endpoint string

	// ServiceName defaults to "pricebook-bridge".
	ServiceName string

	// ServiceVersion is reported as the service.version resource
	// attribute when set.
	ServiceVersion string
}

// SetupTracing installs a batching OTLP trace pipeline as the global
// tracer provider and returns its shutdown function. When no endpoint
// is configured the returned shutdown is a no-op and the global
// provider is left untouched.
func SetupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "pricebook-bridge"
	}

	// Bare host:port endpoints are sent without TLS; pass a full
	// https:// URL to talk to a TLS collector.
	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		if strings.Contains(cfg.Endpoint, "://") {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		}
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel: creating OTLP exporter: %w", err)
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewSchemaless(attrs...)),
	)
	otelapi.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
