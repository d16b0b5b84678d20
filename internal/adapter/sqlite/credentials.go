package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// StoreCredential sets the admin password hash and, when present, the sealed
// recovery copy, in one transaction.
func (r *Repository) StoreCredential(ctx context.Context, cred domain.StoredCredential) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND tenant_id = ?`,
		cred.Hash, cred.UserID, cred.TenantID,
	)
	if err != nil {
		return fmt.Errorf("storing password hash: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("admin user %q: %w", cred.UserID, domain.ErrTenantNotFound)
	}

	if cred.Recovery != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credential_recovery (user_id, tenant_id, ciphertext, expires_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE SET ciphertext = excluded.ciphertext, expires_at = excluded.expires_at`,
			cred.UserID, cred.TenantID, cred.Recovery.Ciphertext(), formatTime(cred.Recovery.ExpiresAt()),
		); err != nil {
			return fmt.Errorf("storing recovery copy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credential: %w", err)
	}
	return nil
}

// TakeRecovery removes the recovery copy of a tenant's admin and returns it if
// it has not expired. A blob is never returned twice.
func (r *Repository) TakeRecovery(ctx context.Context, tenantID string, now time.Time) (domain.RecoveryBlob, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.RecoveryBlob{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var userID, expiresAt string
	var ciphertext []byte
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, ciphertext, expires_at FROM credential_recovery WHERE tenant_id = ?`, tenantID,
	).Scan(&userID, &ciphertext, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RecoveryBlob{}, domain.ErrRecoveryUnavailable
	}
	if err != nil {
		return domain.RecoveryBlob{}, fmt.Errorf("reading recovery copy: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM credential_recovery WHERE user_id = ?`, userID); err != nil {
		return domain.RecoveryBlob{}, fmt.Errorf("deleting recovery copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.RecoveryBlob{}, fmt.Errorf("committing recovery take: %w", err)
	}

	blob := domain.RestoreRecoveryBlob(ciphertext, parseTime(expiresAt))
	if blob.Expired(now) {
		return domain.RecoveryBlob{}, domain.ErrRecoveryUnavailable
	}
	return blob, nil
}

// PurgeExpiredRecovery deletes every recovery copy whose expiry is at or before now.
func (r *Repository) PurgeExpiredRecovery(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM credential_recovery WHERE expires_at <= ?`, formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("purging recovery copies: %w", err)
	}
	return result.RowsAffected()
}
