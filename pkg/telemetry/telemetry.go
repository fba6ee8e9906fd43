// Package telemetry configures OpenTelemetry tracing.
//
// Tracing is off unless an OTLP endpoint is given. Without a provider, the
// spans started throughout rulebook are no-ops.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/macropower/rulebook/pkg/version"
)

// EnvEndpoint is the standard environment variable for the OTLP endpoint.
const EnvEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Config controls tracing.
type Config struct {
	// Endpoint is the OTLP gRPC receiver, e.g. "localhost:4317". Empty
	// disables tracing.
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// ConfigFromEnv returns a [Config] using endpoint, falling back to
// [EnvEndpoint] when endpoint is empty.
func ConfigFromEnv(endpoint string) Config {
	if endpoint == "" {
		endpoint = os.Getenv(EnvEndpoint)
	}

	return Config{
		Endpoint:    endpoint,
		ServiceName: "rulebook",
		Insecure:    true,
	}
}

// Enabled reports whether tracing is configured.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// Init installs a global tracer provider exporting to the configured OTLP
// endpoint. The returned shutdown function flushes pending spans and must be
// called before exit. When tracing is disabled, shutdown is a no-op.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version.GetVersion()),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
	}, nil
}
