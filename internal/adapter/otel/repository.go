package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

const tracerName = "github.com/neomorfeo/tenantforge/internal/adapter/otel"

// TracingRepository wraps a domain.TenantRepository with one span per call.
type TracingRepository struct {
	next   domain.TenantRepository
	tracer trace.Tracer
}

var _ domain.TenantRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.TenantRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) CheckIdentity(ctx context.Context, id domain.Identity) error {
	attrs := []attribute.KeyValue{
		attribute.String("tenant.slug", id.Slug),
		attribute.String("tenant.subdomain", id.Subdomain),
	}
	if id.CustomDomain != nil {
		attrs = append(attrs, attribute.String("tenant.custom_domain", *id.CustomDomain))
	}
	ctx, span := r.tracer.Start(ctx, "TenantRepository.CheckIdentity", trace.WithAttributes(attrs...))
	defer span.End()

	err := r.next.CheckIdentity(ctx, id)
	recordError(span, err)
	return err
}

func (r *TracingRepository) CreateAggregate(ctx context.Context, agg domain.Aggregate) (domain.AggregateRefs, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.CreateAggregate",
		trace.WithAttributes(
			attribute.String("tenant.id", agg.Tenant.ID),
			attribute.String("tenant.slug", agg.Tenant.Slug),
			attribute.String("tenant.plan", string(agg.Tenant.Plan)),
		),
	)
	defer span.End()

	refs, err := r.next.CreateAggregate(ctx, agg)
	recordError(span, err)
	return refs, err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.GetByID",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	tenant, err := r.next.GetByID(ctx, id)
	recordError(span, err)
	return tenant, err
}

func (r *TracingRepository) Update(ctx context.Context, tenant domain.Tenant) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Update",
		trace.WithAttributes(
			attribute.String("tenant.id", tenant.ID),
			attribute.String("tenant.status", string(tenant.Status)),
		),
	)
	defer span.End()

	err := r.next.Update(ctx, tenant)
	recordError(span, err)
	return err
}

func (r *TracingRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Delete",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	err := r.next.Delete(ctx, id)
	recordError(span, err)
	return err
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
