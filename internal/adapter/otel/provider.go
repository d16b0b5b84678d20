package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter selects where telemetry goes.
type Exporter string

const (
	ExporterStdout Exporter = "stdout"
	ExporterOTLP   Exporter = "otlp"
	// ExporterNone keeps the SDK active without exporting, for tests and
	// local runs without a collector.
	ExporterNone Exporter = "none"
)

// Config holds OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Exporter       Exporter
	Insecure       bool    // plain HTTP to the OTLP collector
	SampleRatio    float64 // share of root traces kept; 0 means all
	MetricInterval time.Duration
}

// ConfigFromEnv builds Config from OTEL_* environment variables.
func ConfigFromEnv() Config {
	env := envOrDefault("OTEL_ENVIRONMENT", "development")
	ratio, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLE_RATIO"), 64)
	if err != nil {
		ratio = 0
	}
	interval, err := time.ParseDuration(os.Getenv("OTEL_METRIC_INTERVAL"))
	if err != nil {
		interval = 0
	}
	return Config{
		ServiceName:    envOrDefault("OTEL_SERVICE_NAME", "tenantforge"),
		ServiceVersion: envOrDefault("OTEL_SERVICE_VERSION", "0.1.0"),
		Environment:    env,
		Exporter:       Exporter(envOrDefault("OTEL_EXPORTER", string(ExporterStdout))),
		Insecure:       env == "development",
		SampleRatio:    ratio,
		MetricInterval: interval,
	}
}

// Providers holds initialized OTel providers and their shutdown function.
type Providers struct {
	Shutdown func(ctx context.Context) error
}

// Setup registers global tracer and meter providers built from cfg. The
// returned Shutdown flushes pending telemetry and must run on exit.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	switch cfg.Exporter {
	case ExporterStdout, ExporterOTLP, ExporterNone:
	default:
		return nil, fmt.Errorf("unsupported exporter %q (use %q, %q or %q)", cfg.Exporter, ExporterStdout, ExporterOTLP, ExporterNone)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	traceOpts, err := tracerOptions(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating span exporter: %w", err)
	}
	tp := trace.NewTracerProvider(append(traceOpts, trace.WithResource(res))...)

	meterOpts, err := meterOptions(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := metric.NewMeterProvider(append(meterOpts, metric.WithResource(res))...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Providers{Shutdown: func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
		return errors.Join(errs...)
	}}, nil
}

func tracerOptions(ctx context.Context, cfg Config) ([]trace.TracerProviderOption, error) {
	var opts []trace.TracerProviderOption
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		opts = append(opts, trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRatio))))
	}

	var (
		exporter trace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case ExporterOTLP:
		var httpOpts []otlptracehttp.Option
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, httpOpts...)
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return opts, nil
	}
	if err != nil {
		return nil, err
	}
	return append(opts, trace.WithBatcher(exporter)), nil
}

func meterOptions(ctx context.Context, cfg Config) ([]metric.Option, error) {
	var (
		exporter metric.Exporter
		err      error
	)
	switch cfg.Exporter {
	case ExporterOTLP:
		var httpOpts []otlpmetrichttp.Option
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, httpOpts...)
	case ExporterStdout:
		exporter, err = stdoutmetric.New()
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var readerOpts []metric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, metric.WithInterval(cfg.MetricInterval))
	}
	return []metric.Option{metric.WithReader(metric.NewPeriodicReader(exporter, readerOpts...))}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
