// Package telemetry sets up OpenTelemetry tracing for cloudkit plugins.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	cerrors "github.com/cloudkit/cloudkit/pkg/errors"
)

// InstrumentationName is the tracer name used by every cloudkit plugin.
const InstrumentationName = "github.com/cloudkit/cloudkit"

// Attribute keys set on plugin spans.
const (
	CategoryKey  = attribute.Key("cloudkit.category")
	PluginKey    = attribute.Key("cloudkit.plugin")
	OperationKey = attribute.Key("cloudkit.operation")
	ErrorCodeKey = attribute.Key("cloudkit.error_code")
)

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "stdout" or "none"
	SamplingRate float64 `yaml:"sampling_rate"`
	ServiceName  string  `yaml:"service_name"`

	// Output receives stdout exporter spans; os.Stdout when nil.
	Output io.Writer `yaml:"-"`
}

// DefaultTracingConfig returns tracing disabled with full sampling once enabled.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:      false,
		Exporter:     "stdout",
		SamplingRate: 1.0,
		ServiceName:  "cloudkit",
	}
}

// Provider owns the tracer provider built from a TracingConfig.
type Provider struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// NewProvider builds a tracer provider. A disabled config yields a no-op
// provider.
func NewProvider(cfg TracingConfig) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultTracingConfig().ServiceName
	}
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}

	switch cfg.Exporter {
	case "stdout":
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "none", "":
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}

	provider := sdktrace.NewTracerProvider(opts...)
	return &Provider{provider: provider, shutdown: provider.Shutdown}, nil
}

// Tracer returns the cloudkit tracer from this provider.
func (p *Provider) Tracer() trace.Tracer {
	return p.provider.Tracer(InstrumentationName)
}

// Shutdown flushes and stops span export.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

// DefaultTracer returns the cloudkit tracer from the global provider.
func DefaultTracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// RecordError marks span as failed with the error's code. A nil error
// marks it successful.
func RecordError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorCodeKey.String(string(cerrors.CodeOf(err))))
	span.SetStatus(codes.Error, err.Error())
}
