package domain

import (
	"errors"
	"time"
)

// Secret is a plaintext credential. It prints redacted so it cannot leak into
// logs through fmt or zap.Stringer.
type Secret string

func (s Secret) String() string { return "[redacted]" }

// Reveal returns the plaintext value.
func (s Secret) Reveal() string { return string(s) }

// RecoveryBlob is the sealed copy of a first-login credential. It can only be
// built through NewRecoveryBlob, which enforces an expiry.
type RecoveryBlob struct {
	ciphertext []byte
	expiresAt  time.Time
}

// NewRecoveryBlob wraps ciphertext with an expiry of issuedAt + window.
func NewRecoveryBlob(ciphertext []byte, issuedAt time.Time, window time.Duration) (RecoveryBlob, error) {
	if window <= 0 {
		return RecoveryBlob{}, errors.New("recovery window must be positive")
	}
	if len(ciphertext) == 0 {
		return RecoveryBlob{}, errors.New("recovery ciphertext is empty")
	}
	return RecoveryBlob{ciphertext: ciphertext, expiresAt: issuedAt.UTC().Add(window)}, nil
}

// RestoreRecoveryBlob rebuilds a blob read back from storage.
func RestoreRecoveryBlob(ciphertext []byte, expiresAt time.Time) RecoveryBlob {
	return RecoveryBlob{ciphertext: ciphertext, expiresAt: expiresAt.UTC()}
}

func (b RecoveryBlob) Ciphertext() []byte   { return b.ciphertext }
func (b RecoveryBlob) ExpiresAt() time.Time { return b.expiresAt }

// Expired reports whether the blob may no longer be revealed at now.
func (b RecoveryBlob) Expired(now time.Time) bool {
	return !now.Before(b.expiresAt)
}

// StoredCredential is everything persisted for an administrator credential:
// the hash always, the sealed recovery copy optionally.
type StoredCredential struct {
	UserID   string
	TenantID string
	Hash     string
	Recovery *RecoveryBlob
}
