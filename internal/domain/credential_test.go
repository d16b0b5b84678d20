package domain_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

func TestSecret_IsRedacted(t *testing.T) {
	s := domain.Secret("Ab3$Ab3$Ab3$Ab3$")
	if got := fmt.Sprintf("%v %s", s, s); got != "[redacted] [redacted]" {
		t.Errorf("formatted secret = %q", got)
	}
	if s.Reveal() != "Ab3$Ab3$Ab3$Ab3$" {
		t.Error("Reveal should return the plaintext")
	}
}

func TestNewRecoveryBlob_RequiresWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := domain.NewRecoveryBlob([]byte("x"), now, 0); err == nil {
		t.Error("zero window should be rejected")
	}
	if _, err := domain.NewRecoveryBlob(nil, now, time.Hour); err == nil {
		t.Error("empty ciphertext should be rejected")
	}

	blob, err := domain.NewRecoveryBlob([]byte("sealed"), now, 72*time.Hour)
	if err != nil {
		t.Fatalf("NewRecoveryBlob: %v", err)
	}
	if !blob.ExpiresAt().Equal(now.Add(72 * time.Hour)) {
		t.Errorf("ExpiresAt = %v", blob.ExpiresAt())
	}
	if blob.Expired(now.Add(71 * time.Hour)) {
		t.Error("blob should be valid before expiry")
	}
	if !blob.Expired(now.Add(72 * time.Hour)) {
		t.Error("blob should be expired at expiry")
	}
}

func TestFormatDocumentNumber(t *testing.T) {
	if got := domain.FormatDocumentNumber("INV", 2026, 42); got != "INV-2026-000042" {
		t.Errorf("FormatDocumentNumber = %q", got)
	}
}

func TestTrialDaysUntil(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		end  time.Time
		want int
	}{
		{now.Add(domain.TrialPeriod), 30},
		{now.Add(29*24*time.Hour + time.Minute), 30},
		{now.Add(-time.Hour), 0},
	}
	for _, tc := range cases {
		if got := domain.TrialDaysUntil(now, tc.end); got != tc.want {
			t.Errorf("TrialDaysUntil(%v) = %d, want %d", tc.end, got, tc.want)
		}
	}
}
