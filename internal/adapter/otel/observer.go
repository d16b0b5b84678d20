package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// ProvisioningObserver traces every provisioning step and records run and
// step metrics.
type ProvisioningObserver struct {
	tracer   trace.Tracer
	runs     metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewProvisioningObserver creates the observer from the global providers.
func NewProvisioningObserver() (*ProvisioningObserver, error) {
	meter := otel.Meter(tracerName)

	runs, err := meter.Int64Counter("provisioning.runs",
		metric.WithDescription("Provisioning runs by final stage"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("provisioning.step.failures",
		metric.WithDescription("Failed provisioning steps"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("provisioning.step.duration",
		metric.WithDescription("Provisioning step duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ProvisioningObserver{
		tracer:   otel.Tracer(tracerName),
		runs:     runs,
		failures: failures,
		duration: duration,
	}, nil
}

func (o *ProvisioningObserver) StepStarted(ctx context.Context, name string, stage domain.Stage, criticality domain.Criticality) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String("step.name", name),
		attribute.String("step.stage", string(stage)),
		attribute.String("step.criticality", criticality.String()),
	}
	ctx, span := o.tracer.Start(ctx, "provisioning."+name, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(err error) {
		defer span.End()
		set := metric.WithAttributes(attrs...)
		o.duration.Record(ctx, time.Since(start).Seconds(), set)
		if err != nil {
			recordError(span, err)
			o.failures.Add(ctx, 1, set)
		}
	}
}

func (o *ProvisioningObserver) RunFinished(ctx context.Context, stage domain.Stage) {
	o.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
}
