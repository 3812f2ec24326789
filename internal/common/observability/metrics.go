package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	queryCounter   otelmetric.Int64Counter
	queryDuration  otelmetric.Float64Histogram
}

// New wires the prometheus meter exporter and, when jaegerEndpoint is set,
// a batching jaeger span exporter.
func New(serviceName, jaegerEndpoint string) *Observability {
	return NewWithRegisterer(serviceName, jaegerEndpoint, promclient.DefaultRegisterer)
}

func NewWithRegisterer(serviceName, jaegerEndpoint string, reg promclient.Registerer) *Observability {
	o := &Observability{tracer: noop.NewTracerProvider().Tracer(serviceName)}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if jaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
		if err != nil {
			log.Printf("Failed to create Jaeger exporter: %v", err)
		} else {
			traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
		}
	}
	o.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(o.tracerProvider)
	o.tracer = o.tracerProvider.Tracer(serviceName)

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)

	o.meterProvider = provider
	o.meter = provider.Meter(serviceName)

	o.queryCounter, _ = o.meter.Int64Counter(
		"queries.processed",
		otelmetric.WithDescription("Number of questions processed"),
	)

	o.queryDuration, _ = o.meter.Float64Histogram(
		"queries.duration",
		otelmetric.WithDescription("End-to-end question processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return o
}

// NewWithTracerProvider is used in tests to capture spans; metrics are disabled.
func NewWithTracerProvider(tp *sdktrace.TracerProvider) *Observability {
	return &Observability{tracerProvider: tp, tracer: tp.Tracer("test")}
}

// StartSpan starts a child span of whatever span ctx carries.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordQueryProcessed(ctx context.Context, source, status string) {
	if o != nil && o.queryCounter != nil {
		o.queryCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordQueryDuration(ctx context.Context, duration time.Duration, status string) {
	if o != nil && o.queryDuration != nil {
		o.queryDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		o.tracerProvider.Shutdown(ctx)
	}
}
