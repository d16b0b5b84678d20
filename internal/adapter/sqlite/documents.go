package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// IssueInvoice numbers, renders and stores an invoice in one transaction. The
// sequence row stays locked until commit, so a failed render or insert rolls
// the number back and the series keeps no gaps.
func (r *Repository) IssueInvoice(ctx context.Context, inv domain.Invoice, prefix string, render func(domain.Invoice) ([]byte, error)) (domain.Invoice, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	year := inv.IssuedAt.Year()
	seq, err := nextNumber(ctx, tx, domain.SeriesInvoice, year)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Number = domain.FormatDocumentNumber(prefix, year, seq)

	if inv.PDF, err = render(inv); err != nil {
		return domain.Invoice{}, fmt.Errorf("rendering %s: %w", inv.Number, err)
	}

	snapshot, err := json.Marshal(inv.Snapshot)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("encoding invoice snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO invoices (id, tenant_id, number, kind, amount, issued_at, due_at, snapshot, pdf)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.TenantID, inv.Number, string(inv.Kind), inv.Amount.StringFixed(2),
		formatTime(inv.IssuedAt), formatTime(inv.DueAt), string(snapshot), inv.PDF,
	)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("inserting invoice %s: %w", inv.Number, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Invoice{}, fmt.Errorf("committing invoice %s: %w", inv.Number, err)
	}
	return inv, nil
}

// IssueContract is IssueInvoice for the contract series.
func (r *Repository) IssueContract(ctx context.Context, c domain.Contract, prefix string, render func(domain.Contract) ([]byte, error)) (domain.Contract, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	year := c.IssuedAt.Year()
	seq, err := nextNumber(ctx, tx, domain.SeriesContract, year)
	if err != nil {
		return domain.Contract{}, err
	}
	c.Number = domain.FormatDocumentNumber(prefix, year, seq)

	if c.PDF, err = render(c); err != nil {
		return domain.Contract{}, fmt.Errorf("rendering %s: %w", c.Number, err)
	}

	snapshot, err := json.Marshal(c.Snapshot)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("encoding contract snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO contracts (id, tenant_id, number, issued_at, snapshot, pdf) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Number, formatTime(c.IssuedAt), string(snapshot), c.PDF,
	)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("inserting contract %s: %w", c.Number, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Contract{}, fmt.Errorf("committing contract %s: %w", c.Number, err)
	}
	return c, nil
}

// nextNumber bumps (series, year) inside tx.
func nextNumber(ctx context.Context, tx *sql.Tx, series domain.DocumentSeries, year int) (int64, error) {
	var next int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO document_sequences (series, year, last_value) VALUES (?, ?, 1)
		 ON CONFLICT (series, year) DO UPDATE SET last_value = last_value + 1
		 RETURNING last_value`,
		string(series), year,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocating %s number: %w", series, err)
	}
	return next, nil
}

// InvoicesByTenant returns the invoices of a tenant in issuance order.
func (r *Repository) InvoicesByTenant(ctx context.Context, tenantID string) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, number, kind, amount, issued_at, due_at, snapshot, pdf
		 FROM invoices WHERE tenant_id = ? ORDER BY issued_at, number`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		var kind, amount, issuedAt, dueAt, snapshot string
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.Number, &kind, &amount,
			&issuedAt, &dueAt, &snapshot, &inv.PDF); err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		inv.Kind = domain.InvoiceKind(kind)
		inv.Amount, _ = decimal.NewFromString(amount)
		inv.IssuedAt = parseTime(issuedAt)
		inv.DueAt = parseTime(dueAt)
		if err := json.Unmarshal([]byte(snapshot), &inv.Snapshot); err != nil {
			return nil, fmt.Errorf("decoding invoice snapshot: %w", err)
		}
		inv.Lines = inv.Snapshot.LineItems
		out = append(out, inv)
	}

	return out, rows.Err()
}

// ContractsByTenant returns the contracts of a tenant in issuance order.
func (r *Repository) ContractsByTenant(ctx context.Context, tenantID string) ([]domain.Contract, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, number, issued_at, snapshot, pdf
		 FROM contracts WHERE tenant_id = ? ORDER BY issued_at, number`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contract
	for rows.Next() {
		var c domain.Contract
		var issuedAt, snapshot string
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Number, &issuedAt, &snapshot, &c.PDF); err != nil {
			return nil, fmt.Errorf("scanning contract: %w", err)
		}
		c.IssuedAt = parseTime(issuedAt)
		if err := json.Unmarshal([]byte(snapshot), &c.Snapshot); err != nil {
			return nil, fmt.Errorf("decoding contract snapshot: %w", err)
		}
		out = append(out, c)
	}

	return out, rows.Err()
}
