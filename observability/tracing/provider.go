// Package tracing configures OpenTelemetry for marketctl and provides span
// helpers for lifecycle operations and the local HTTP bridge.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config is the tracing block of the host config.
type Config struct {
	// Endpoint is the OTLP HTTP collector, e.g. "localhost:4318". Empty
	// keeps tracing off.
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Insecure       bool    `yaml:"insecure"`
	SampleRate     float64 `yaml:"sample_rate"`
}

// DefaultConfig has tracing off and samples everything once enabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "marketctl",
		Insecure:    true,
		SampleRate:  1.0,
	}
}

// Validate rejects sample rates outside [0, 1].
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("tracing: sample_rate %v outside [0, 1]", c.SampleRate)
	}
	return nil
}

// sampler maps SampleRate to a parent-based sampler so spans started by a
// traced bridge client keep the client's decision. Zero and one both mean
// always sample.
func (c Config) sampler() sdktrace.Sampler {
	root := sdktrace.AlwaysSample()
	if c.SampleRate > 0 && c.SampleRate < 1 {
		root = sdktrace.TraceIDRatioBased(c.SampleRate)
	}
	return sdktrace.ParentBased(root)
}

func (c Config) resource(ctx context.Context) (*resource.Resource, error) {
	kvs := []resource.Option{resource.WithAttributes(semconv.ServiceName(c.ServiceName))}
	if c.ServiceVersion != "" {
		kvs = append(kvs, resource.WithAttributes(semconv.ServiceVersion(c.ServiceVersion)))
	}
	return resource.New(ctx, kvs...)
}

// Provider is the process-wide tracer provider. A disabled provider hands
// out no-op tracers.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds the provider described by cfg and, when an endpoint
// is set, installs it and the W3C propagators globally so the bridge
// middleware and the otelhttp client join the same traces.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultConfig().ServiceName
	}
	if cfg.Endpoint == "" {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}, nil
	}

	exportOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		exportOpts = append(exportOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exportOpts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: exporter for %s: %w", cfg.Endpoint, err)
	}
	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracing: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return &Provider{tp: tp, tracer: tp.Tracer(InstrumentationName)}, nil
}

// Enabled reports whether spans leave the process.
func (p *Provider) Enabled() bool { return p.tp != nil }

// Tracer returns the marketplace tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes buffered spans. It is a no-op when disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
