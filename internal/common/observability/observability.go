// internal/common/observability/observability.go
package observability

import (
	"context"
	"errors"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"shoe-size-analytics/internal/common/logger"
)

type Options struct {
	ServiceName    string
	JaegerEndpoint string
	SampleRatio    float64
	// Registerer defaults to the global prometheus registry.
	Registerer prom.Registerer
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer

	analysisCounter  otelmetric.Int64Counter
	analysisDuration otelmetric.Float64Histogram
	fileCounter      otelmetric.Int64Counter
}

// New installs the global meter provider and, when a Jaeger endpoint is
// configured, the global tracer provider. Exporter failures are logged and
// leave that half disabled.
func New(opts Options, log logger.Logger) *Observability {
	o := &Observability{}
	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))

	promOpts := []prometheus.Option{}
	if opts.Registerer != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(opts.Registerer))
	}
	exporter, err := prometheus.New(promOpts...)
	if err != nil {
		log.Error("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
		otel.SetMeterProvider(o.meterProvider)
		o.meter = o.meterProvider.Meter(opts.ServiceName)

		o.analysisCounter, _ = o.meter.Int64Counter(
			"analysis.processed",
			otelmetric.WithDescription("Number of analyses processed"),
		)
		o.analysisDuration, _ = o.meter.Float64Histogram(
			"analysis.duration",
			otelmetric.WithDescription("Analysis processing duration"),
			otelmetric.WithUnit("ms"),
		)
		o.fileCounter, _ = o.meter.Int64Counter(
			"analysis.files",
			otelmetric.WithDescription("Uploaded files by processing status"),
		)
	}

	if opts.JaegerEndpoint != "" {
		jexp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
		if err != nil {
			log.Error("Failed to create Jaeger exporter", map[string]interface{}{"error": err.Error()})
		} else {
			ratio := opts.SampleRatio
			if ratio <= 0 || ratio > 1 {
				ratio = 1
			}
			o.tracerProvider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(jexp),
				sdktrace.WithResource(res),
				sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			)
			otel.SetTracerProvider(o.tracerProvider)
		}
	}

	o.tracer = otel.Tracer(opts.ServiceName)
	return o
}

func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return otel.Tracer("").Start(ctx, name, trace.WithAttributes(attrs...))
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// TracingEnabled reports whether spans are exported anywhere.
func (o *Observability) TracingEnabled() bool {
	return o.tracerProvider != nil
}

func (o *Observability) RecordAnalysis(ctx context.Context, source, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	)
	if o.analysisCounter != nil {
		o.analysisCounter.Add(ctx, 1, attrs)
	}
	if o.analysisDuration != nil {
		o.analysisDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordFile(ctx context.Context, status string) {
	if o.fileCounter != nil {
		o.fileCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	if o.meterProvider != nil {
		errs = append(errs, o.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
