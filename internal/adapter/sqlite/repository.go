package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Repository implements the tenant, document, credential, payment session and
// notification ports on one SQLite database.
type Repository struct {
	db *sql.DB
}

var (
	_ domain.TenantRepository    = (*Repository)(nil)
	_ domain.DocumentRepository  = (*Repository)(nil)
	_ domain.DocumentReader      = (*Repository)(nil)
	_ domain.CredentialStore     = (*Repository)(nil)
	_ domain.PaymentSessionStore = (*Repository)(nil)
	_ domain.NotificationLog     = (*Repository)(nil)
)

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*Repository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: transactions serialize and an in-memory database is shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite). Cascading deletes depend on it.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Repository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *Repository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// timeFormat is fixed width so stored timestamps compare correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CheckIdentity reports the first taken part of an identity as a *ConflictError.
// It is a fast path only: the UNIQUE constraints decide races at insert time.
func (r *Repository) CheckIdentity(ctx context.Context, id domain.Identity) error {
	return identityConflict(ctx, r.db, id)
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// identityConflict looks up the row holding any part of id and names the
// collision in slug, subdomain, custom domain order.
func identityConflict(ctx context.Context, q rowQueryer, id domain.Identity) error {
	var slug, subdomain string
	var custom sql.NullString

	err := q.QueryRowContext(ctx,
		`SELECT slug, subdomain, custom_domain FROM tenants
		 WHERE slug = ? OR subdomain = ? OR (custom_domain IS NOT NULL AND custom_domain = ?)
		 ORDER BY slug = ? DESC, subdomain = ? DESC
		 LIMIT 1`,
		id.Slug, id.Subdomain, nullString(id.CustomDomain), id.Slug, id.Subdomain,
	).Scan(&slug, &subdomain, &custom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking identity: %w", err)
	}

	switch {
	case slug == id.Slug:
		return &domain.ConflictError{Field: "slug", Value: id.Slug}
	case subdomain == id.Subdomain:
		return &domain.ConflictError{Field: "subdomain", Value: id.Subdomain}
	default:
		return &domain.ConflictError{Field: "custom_domain", Value: custom.String}
	}
}

const tenantColumns = `id, name, slug, subdomain, custom_domain, status, plan, monthly_amount,
	trial_ends_at, next_billing_at, features,
	owner_first_name, owner_last_name, owner_email, owner_phone,
	legal_name, tax_id, billing_address, billing_postal_code, billing_city, billing_country, billing_email,
	mandate_ref, mandate_signed_at, mandate_account_holder, template_id, primary_color,
	created_at, updated_at`

func (r *Repository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	t, err := scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id,
	))
	if err != nil {
		return domain.Tenant{}, err
	}

	history, err := r.addonHistory(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	t.Addons = domain.NewAddonState(history)

	return t, nil
}

// Update writes the mutable lifecycle and billing fields of a tenant.
func (r *Repository) Update(ctx context.Context, t domain.Tenant) error {
	features, err := json.Marshal(t.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET status = ?, plan = ?, monthly_amount = ?, next_billing_at = ?,
		 features = ?, updated_at = ? WHERE id = ?`,
		string(t.Status), string(t.Plan), t.MonthlyAmount.StringFixed(2),
		formatTime(t.NextBillingAt), string(features), formatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}

	return nil
}

// Delete removes a tenant; foreign keys cascade to every dependent table.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}

	return nil
}

func (r *Repository) addonHistory(ctx context.Context, tenantID string) ([]domain.AddonPurchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT addon_id, kind, price, status, purchased_at FROM addon_purchases
		 WHERE tenant_id = ? ORDER BY id`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing addon history: %w", err)
	}
	defer rows.Close()

	var history []domain.AddonPurchase
	for rows.Next() {
		var p domain.AddonPurchase
		var kind, price, status, purchasedAt string
		if err := rows.Scan(&p.AddonID, &kind, &price, &status, &purchasedAt); err != nil {
			return nil, fmt.Errorf("scanning addon purchase: %w", err)
		}
		p.Kind = domain.AddonKind(kind)
		p.Price, _ = decimal.NewFromString(price)
		p.Status = domain.PurchaseStatus(status)
		p.PurchasedAt = parseTime(purchasedAt)
		history = append(history, p)
	}

	return history, rows.Err()
}

// scanTenant scans a single row from QueryRow into a domain.Tenant.
func scanTenant(row *sql.Row) (domain.Tenant, error) {
	var t domain.Tenant
	var custom, mandateSignedAt sql.NullString
	var status, plan, monthly, trialEnds, nextBilling, features, createdAt, updatedAt string

	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Subdomain, &custom, &status, &plan, &monthly,
		&trialEnds, &nextBilling, &features,
		&t.Owner.FirstName, &t.Owner.LastName, &t.Owner.Email, &t.Owner.Phone,
		&t.Billing.LegalName, &t.Billing.TaxID, &t.Billing.Address, &t.Billing.PostalCode,
		&t.Billing.City, &t.Billing.Country, &t.Billing.Email,
		&t.Mandate.Reference, &mandateSignedAt, &t.Mandate.AccountHolder,
		&t.Branding.TemplateID, &t.Branding.PrimaryColor,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}

	if custom.Valid {
		t.CustomDomain = &custom.String
	}
	t.Status = domain.Status(status)
	t.Plan = domain.Plan(plan)
	t.MonthlyAmount, err = decimal.NewFromString(monthly)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("parsing monthly amount: %w", err)
	}
	t.TrialEndsAt = parseTime(trialEnds)
	t.NextBillingAt = parseTime(nextBilling)
	t.Features = domain.Features{}
	if err := json.Unmarshal([]byte(features), &t.Features); err != nil {
		return domain.Tenant{}, fmt.Errorf("decoding features: %w", err)
	}
	t.Mandate.SignedAt = parseNullTime(mandateSignedAt)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	return t, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
