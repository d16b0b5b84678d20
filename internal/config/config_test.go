package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPERATOR_TOKENS", "")
	t.Setenv("PERSIST_TIMEOUT", "")
	t.Setenv("DB_BUSY_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.DBBusy)
	assert.Equal(t, 10*time.Second, cfg.PersistTimeout)
	assert.Equal(t, 72*time.Hour, cfg.Recovery.Window)
	assert.Equal(t, "INV", cfg.Docs.InvoicePrefix)
	assert.Equal(t, "eur", cfg.Payment.Currency)
	assert.Empty(t, cfg.OperatorTokens)
	assert.Error(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("OPERATOR_TOKENS", " tok-a , ,tok-b")
	t.Setenv("PERSIST_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("CREDENTIAL_RECOVERY_KEY", "c2VjcmV0")
	t.Setenv("BILLING_CURRENCY", "EUR")
	t.Setenv("DB_BUSY_TIMEOUT", "1500ms")

	cfg := Load()

	assert.Equal(t, []string{"tok-a", "tok-b"}, cfg.OperatorTokens)
	assert.Equal(t, 3*time.Second, cfg.PersistTimeout)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 1500*time.Millisecond, cfg.DBBusy)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.True(t, cfg.Recovery.Enabled())
	assert.Equal(t, "eur", cfg.Payment.Currency)
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveWindow(t *testing.T) {
	t.Setenv("OPERATOR_TOKENS", "tok")
	t.Setenv("CREDENTIAL_RECOVERY_KEY", "c2VjcmV0")
	t.Setenv("CREDENTIAL_RECOVERY_WINDOW", "0s")

	cfg := Load()
	cfg.Recovery.Window = 0

	assert.Error(t, cfg.Validate())
}
