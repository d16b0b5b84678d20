package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

var _ domain.EventPublisher = (*TracingPublisher)(nil)

// TracingPublisher records a producer span and a counter for every lifecycle
// event handed to the queue.
type TracingPublisher struct {
	next        domain.EventPublisher
	system      string
	destination string
	tracer      trace.Tracer
	published   metric.Int64Counter
}

// NewTracingPublisher wraps next, which delivers to destination on the given
// messaging system.
func NewTracingPublisher(next domain.EventPublisher, system, destination string) (*TracingPublisher, error) {
	published, err := otel.Meter(tracerName).Int64Counter("tenant.events.published",
		metric.WithDescription("Lifecycle events handed to the queue, by event and outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &TracingPublisher{
		next:        next,
		system:      system,
		destination: destination,
		tracer:      otel.Tracer(tracerName),
		published:   published,
	}, nil
}

func (p *TracingPublisher) Publish(ctx context.Context, event domain.Event, tenant domain.Tenant) error {
	ctx, span := p.tracer.Start(ctx, p.destination+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String(p.system),
			semconv.MessagingDestinationName(p.destination),
			semconv.MessagingOperationTypePublish,
			attribute.String("event.type", string(event)),
			attribute.String("tenant.id", tenant.ID),
			attribute.String("tenant.slug", tenant.Slug),
			attribute.String("tenant.status", string(tenant.Status)),
			attribute.String("tenant.plan", string(tenant.Plan)),
			attribute.String("tenant.monthly_amount", tenant.MonthlyAmount.StringFixed(2)),
		),
	)
	defer span.End()

	err := p.next.Publish(ctx, event, tenant)
	recordError(span, err)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", string(event)),
		attribute.String("outcome", outcome),
	))
	return err
}
