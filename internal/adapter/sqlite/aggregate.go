package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// CreateAggregate inserts the tenant and every mandatory dependent in a single
// transaction. Nothing is committed unless all inserts succeed.
func (r *Repository) CreateAggregate(ctx context.Context, agg domain.Aggregate) (domain.AggregateRefs, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AggregateRefs{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := insertTenant(ctx, tx, agg.Tenant); err != nil {
		return domain.AggregateRefs{}, err
	}

	tenantID := agg.Tenant.ID
	steps := []struct {
		what  string
		query string
		args  []any
	}{
		{
			"tenant config",
			`INSERT INTO tenant_configs (id, tenant_id, site_name, template_id, primary_color, contact_email, contact_phone)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{agg.Site.ID, tenantID, agg.Site.SiteName, agg.Site.TemplateID, agg.Site.PrimaryColor,
				agg.Site.ContactEmail, agg.Site.ContactPhone},
		},
		{
			"primary location",
			`INSERT INTO locations (id, tenant_id, name, address, postal_code, city, country, is_primary)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{agg.Location.ID, tenantID, agg.Location.Name, agg.Location.Address, agg.Location.PostalCode,
				agg.Location.City, agg.Location.Country, boolInt(agg.Location.Primary)},
		},
		{
			"payment settings",
			`INSERT INTO payment_settings (id, tenant_id, provider, currency) VALUES (?, ?, ?, ?)`,
			[]any{agg.Payment.ID, tenantID, agg.Payment.Provider, agg.Payment.Currency},
		},
		{
			"booking settings",
			`INSERT INTO booking_settings (id, tenant_id, slot_minutes, min_notice_hours, max_advance_days, require_deposit)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{agg.Booking.ID, tenantID, agg.Booking.SlotMinutes, agg.Booking.MinNoticeHours,
				agg.Booking.MaxAdvanceDays, boolInt(agg.Booking.RequireDeposit)},
		},
		{
			"loyalty settings",
			`INSERT INTO loyalty_settings (id, tenant_id, enabled, points_per_unit) VALUES (?, ?, ?, ?)`,
			[]any{agg.Loyalty.ID, tenantID, boolInt(agg.Loyalty.Enabled), agg.Loyalty.PointsPerUnit},
		},
		{
			"admin user",
			`INSERT INTO users (id, tenant_id, email, first_name, last_name, role, must_change_password, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{agg.Admin.ID, tenantID, agg.Admin.Email, agg.Admin.FirstName, agg.Admin.LastName,
				string(agg.Admin.Role), boolInt(agg.Admin.MustChangePassword), formatTime(agg.Tenant.CreatedAt)},
		},
	}

	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return domain.AggregateRefs{}, fmt.Errorf("inserting %s: %w", s.what, err)
		}
	}

	for _, p := range agg.Tenant.Addons.History {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO addon_purchases (tenant_id, addon_id, kind, price, status, purchased_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tenantID, p.AddonID, string(p.Kind), p.Price.StringFixed(2), string(p.Status), formatTime(p.PurchasedAt),
		); err != nil {
			return domain.AggregateRefs{}, fmt.Errorf("inserting addon purchase %q: %w", p.AddonID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.AggregateRefs{}, fmt.Errorf("committing tenant aggregate: %w", err)
	}

	return agg.Refs(), nil
}

func insertTenant(ctx context.Context, tx *sql.Tx, t domain.Tenant) error {
	features, err := json.Marshal(t.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Slug, t.Subdomain, nullString(t.CustomDomain), string(t.Status), string(t.Plan),
		t.MonthlyAmount.StringFixed(2), formatTime(t.TrialEndsAt), formatTime(t.NextBillingAt), string(features),
		t.Owner.FirstName, t.Owner.LastName, t.Owner.Email, t.Owner.Phone,
		t.Billing.LegalName, t.Billing.TaxID, t.Billing.Address, t.Billing.PostalCode,
		t.Billing.City, t.Billing.Country, t.Billing.Email,
		t.Mandate.Reference, formatNullTime(t.Mandate.SignedAt), t.Mandate.AccountHolder,
		t.Branding.TemplateID, t.Branding.PrimaryColor,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		// SQLite names only one of the violated indexes, so ask the
		// table which identity part is taken.
		if isUniqueViolation(err) {
			id := domain.Identity{Slug: t.Slug, Subdomain: t.Subdomain, CustomDomain: t.CustomDomain}
			if conflict := identityConflict(ctx, tx, id); conflict != nil {
				return conflict
			}
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}
