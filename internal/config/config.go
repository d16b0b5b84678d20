package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Environment string
	Port        string
	DBPath      string
	DBBusy      time.Duration
	LogLevel    string

	OperatorTokens []string
	RateLimitRPS   float64
	RateLimitBurst int

	PersistTimeout time.Duration
	StepTimeout    time.Duration

	Platform PlatformConfig
	Payment  PaymentConfig
	Mail     MailConfig
	Docs     DocumentConfig
	Recovery RecoveryConfig
}

// PlatformConfig describes how tenants reach the platform.
type PlatformConfig struct {
	Name         string
	TenantDomain string
	LoginURL     string
	StaffEmail   string
}

// PaymentConfig configures the checkout gateway.
type PaymentConfig struct {
	Provider   string
	BaseURL    string
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	RetryDelay time.Duration
}

// MailConfig configures the transactional email API.
type MailConfig struct {
	BaseURL  string
	APIKey   string
	From     string
	FromName string
}

// DocumentConfig holds the numbering prefixes of issued documents.
type DocumentConfig struct {
	InvoicePrefix  string
	ContractPrefix string
}

// RecoveryConfig controls the sealed first-login credential copy. Recovery is
// disabled when Key is empty.
type RecoveryConfig struct {
	Key           string
	Window        time.Duration
	PurgeInterval time.Duration
}

// Enabled reports whether a sealing key is configured.
func (r RecoveryConfig) Enabled() bool {
	return r.Key != ""
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment: getenv("ENVIRONMENT", "development"),
		Port:        getenv("PORT", "8080"),
		DBPath:      getenv("DB_PATH", "tenantforge.db"),
		DBBusy:      getenvDuration("DB_BUSY_TIMEOUT", 5*time.Second),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		OperatorTokens: splitList(os.Getenv("OPERATOR_TOKENS")),
		RateLimitRPS:   getenvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getenvInt("RATE_LIMIT_BURST", 20),

		PersistTimeout: getenvDuration("PERSIST_TIMEOUT", 10*time.Second),
		StepTimeout:    getenvDuration("ENRICH_STEP_TIMEOUT", 15*time.Second),

		Platform: PlatformConfig{
			Name:         getenv("PLATFORM_NAME", "Tenantforge"),
			TenantDomain: getenv("TENANT_DOMAIN", "beauty.localhost"),
			LoginURL:     getenv("LOGIN_URL", "http://admin.beauty.localhost/login"),
			StaffEmail:   strings.TrimSpace(getenv("STAFF_EMAIL", "")),
		},
		Payment: PaymentConfig{
			Provider:   getenv("PAYMENT_PROVIDER", "stripe"),
			BaseURL:    getenv("STRIPE_BASE_URL", "https://api.stripe.com"),
			SecretKey:  strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			Currency:   strings.ToLower(getenv("BILLING_CURRENCY", "eur")),
			SuccessURL: getenv("CHECKOUT_SUCCESS_URL", "http://admin.beauty.localhost/billing/success"),
			CancelURL:  getenv("CHECKOUT_CANCEL_URL", "http://admin.beauty.localhost/billing/cancel"),
			RetryDelay: getenvDuration("PAYMENT_RETRY_DELAY", time.Minute),
		},
		Mail: MailConfig{
			BaseURL:  getenv("MAIL_BASE_URL", "https://api.brevo.com"),
			APIKey:   strings.TrimSpace(getenv("MAIL_API_KEY", "")),
			From:     getenv("MAIL_FROM", "no-reply@beauty.localhost"),
			FromName: getenv("MAIL_FROM_NAME", "Tenantforge"),
		},
		Docs: DocumentConfig{
			InvoicePrefix:  getenv("INVOICE_PREFIX", "INV"),
			ContractPrefix: getenv("CONTRACT_PREFIX", "CTR"),
		},
		Recovery: RecoveryConfig{
			Key:           strings.TrimSpace(getenv("CREDENTIAL_RECOVERY_KEY", "")),
			Window:        getenvDuration("CREDENTIAL_RECOVERY_WINDOW", 72*time.Hour),
			PurgeInterval: getenvDuration("CREDENTIAL_PURGE_INTERVAL", time.Hour),
		},
	}
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.OperatorTokens) == 0 {
		errs = append(errs, errors.New("OPERATOR_TOKENS must list at least one token"))
	}
	if c.PersistTimeout <= 0 || c.StepTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Recovery.Enabled() && c.Recovery.Window <= 0 {
		errs = append(errs, errors.New("CREDENTIAL_RECOVERY_WINDOW must be positive"))
	}
	if c.Docs.InvoicePrefix == "" || c.Docs.ContractPrefix == "" {
		errs = append(errs, errors.New("document prefixes must not be empty"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
