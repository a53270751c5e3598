// Package telemetry configures OpenTelemetry tracing and metrics for expertd. A disabled
// or failed setup degrades to the global no-op provider and never stops the
// service.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dominicdesy/intelia-expert/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	shutdownTimeout = 5 * time.Second
	exportInterval  = 30 * time.Second
)

// Telemetry owns the tracer and meter providers.
type Telemetry struct {
	cfg      config.TelemetryConfig
	provider *sdktrace.TracerProvider
	meters   *sdkmetric.MeterProvider
	degraded atomic.Bool
	lastErr  atomic.Value // error
}

// Option configures New.
type Option func(*options)

type options struct {
	exporter       sdktrace.SpanExporter
	metricExporter sdkmetric.Exporter
	version        string
}

// WithExporter replaces the OTLP gRPC exporter.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// WithMetricExporter replaces the OTLP gRPC metric exporter.
func WithMetricExporter(exp sdkmetric.Exporter) Option {
	return func(o *options) { o.metricExporter = exp }
}

// WithVersion sets the service.version resource attribute.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// New installs a global tracer provider when tracing is enabled. Exporter
// errors mark the instance degraded instead of failing.
func New(ctx context.Context, cfg config.TelemetryConfig, opts ...Option) *Telemetry {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t
	}

	exp := o.exporter
	if exp == nil {
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		var err error
		exp, err = otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			t.setDegraded(fmt.Errorf("creating trace exporter: %w", err))
			return t
		}
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(o.version),
	)
	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mp, err := newMeterProvider(ctx, cfg, res, o.metricExporter)
	if err != nil {
		t.setDegraded(err)
		return t
	}
	t.meters = mp
	otel.SetMeterProvider(mp)
	return t
}

// newMeterProvider exports cumulative metrics on a fixed interval.
func newMeterProvider(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, exp sdkmetric.Exporter) (*sdkmetric.MeterProvider, error) {
	if exp == nil {
		cumulative := func(sdkmetric.InstrumentKind) metricdata.Temporality {
			return metricdata.CumulativeTemporality
		}
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithTemporalitySelector(cumulative),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		var err error
		exp, err = otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(exportInterval))),
	), nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns a named tracer, falling back to the global provider.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	if t == nil || t.provider == nil {
		return otel.Tracer(name)
	}
	return t.provider.Tracer(name)
}

// Degraded reports whether setup failed, with the cause.
func (t *Telemetry) Degraded() (bool, error) {
	if t == nil {
		return false, nil
	}
	err, _ := t.lastErr.Load().(error)
	return t.degraded.Load(), err
}

func (t *Telemetry) setDegraded(err error) {
	t.degraded.Store(true)
	t.lastErr.Store(err)
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("trace provider shutdown: %w", err)
	}
	if t.meters != nil {
		if err := t.meters.Shutdown(ctx); err != nil {
			return fmt.Errorf("meter provider shutdown: %w", err)
		}
	}
	return nil
}
