package sqlite

import (
	"context"
	"fmt"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

func (r *Repository) RecordNotification(ctx context.Context, rec domain.NotificationRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, tenant_id, kind, recipient, subject, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, string(rec.Kind), rec.Recipient, rec.Subject,
		string(rec.Status), rec.Error, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

// Notifications returns the send history of a tenant, oldest first.
func (r *Repository) Notifications(ctx context.Context, tenantID string) ([]domain.NotificationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, kind, recipient, subject, status, error, created_at
		 FROM notifications WHERE tenant_id = ? ORDER BY created_at, id`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationRecord
	for rows.Next() {
		var rec domain.NotificationRecord
		var kind, status, createdAt string
		if err := rows.Scan(&rec.ID, &rec.TenantID, &kind, &rec.Recipient, &rec.Subject,
			&status, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		rec.Kind = domain.NotificationKind(kind)
		rec.Status = domain.NotificationStatus(status)
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}

	return out, rows.Err()
}
