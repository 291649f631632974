// Package telemetry configures OpenTelemetry tracing for reactmesh
// processes.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options configures tracing.
type Options struct {
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP/HTTP collector, e.g. "localhost:4318" or
	// "http://collector:4318". Empty disables export.
	Endpoint string

	// SampleRatio is the fraction of runs traced. Values >= 1 trace all.
	SampleRatio float64

	// Exporter overrides the OTLP exporter, mainly for tests.
	Exporter sdktrace.SpanExporter

	// SetGlobal installs the provider as the global tracer provider.
	SetGlobal bool
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// Setup creates a tracer provider. Without an endpoint or exporter the
// provider records nothing but is still safe to use.
func Setup(ctx context.Context, optFns ...func(o *Options)) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	opts := Options{
		ServiceName: "reactmesh",
		SampleRatio: 1,
		SetGlobal:   true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	exporter := opts.Exporter

	if exporter == nil && opts.Endpoint != "" {
		var err error

		exporter, err = otlptracehttp.New(ctx, endpointOptions(opts.Endpoint)...)
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
		}
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.ServiceVersion),
	)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	}

	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)

	if opts.SetGlobal {
		otel.SetTracerProvider(tp)
	}

	return tp, tp.Shutdown, nil
}

// endpointOptions accepts both host:port and URL forms.
func endpointOptions(endpoint string) []otlptracehttp.Option {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint + "/v1/traces"), otlptracehttp.WithInsecure()}
	case strings.HasPrefix(endpoint, "https://"):
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint + "/v1/traces")}
	default:
		return []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}
	}
}

// WithEndpoint sets the OTLP/HTTP endpoint.
func WithEndpoint(endpoint string) func(o *Options) {
	return func(o *Options) {
		o.Endpoint = endpoint
	}
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(v string) func(o *Options) {
	return func(o *Options) {
		o.ServiceVersion = v
	}
}

// WithExporter sets a custom span exporter.
func WithExporter(e sdktrace.SpanExporter) func(o *Options) {
	return func(o *Options) {
		o.Exporter = e
	}
}

// WithSampleRatio sets the trace sampling ratio.
func WithSampleRatio(r float64) func(o *Options) {
	return func(o *Options) {
		o.SampleRatio = r
	}
}
