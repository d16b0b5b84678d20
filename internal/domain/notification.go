package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Name    string
	Content []byte
}

// Message is an outbound transactional email.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// NotificationKind names the purpose of a send.
type NotificationKind string

const (
	NotificationWelcome     NotificationKind = "welcome"
	NotificationStaffAlert  NotificationKind = "staff_alert"
	NotificationPaymentLink NotificationKind = "payment_link"
)

// NotificationStatus records the outcome of one send attempt.
type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// NotificationRecord is one row of the send history, kept for manual resend.
type NotificationRecord struct {
	ID        string
	TenantID  string
	Kind      NotificationKind
	Recipient string
	Subject   string
	Status    NotificationStatus
	Error     string
	CreatedAt time.Time
}

// WelcomeNotice is everything the owner needs to start using the back office.
type WelcomeNotice struct {
	TenantName    string
	OwnerName     string
	To            string
	Login         string
	Credential    Secret
	Plan          Plan
	SiteURL       string
	LoginURL      string
	MonthlyAmount decimal.Decimal
	OneTimeAmount decimal.Decimal
	TrialEndsAt   time.Time
	MandateRef    string
	PaymentLink   *string
	Attachments   []Attachment
}

// StaffNotice tells internal staff that a tenant was provisioned.
type StaffNotice struct {
	To            string
	TenantID      string
	TenantName    string
	Plan          Plan
	OwnerName     string
	OwnerEmail    string
	MonthlyAmount decimal.Decimal
	OneTimeAmount decimal.Decimal
	TrialEndsAt   time.Time
	SiteURL       string
}

// PaymentLinkNotice delivers a payment link opened after provisioning.
type PaymentLinkNotice struct {
	TenantName    string
	OwnerName     string
	To            string
	URL           string
	Plan          Plan
	MonthlyAmount decimal.Decimal
	TrialEndsAt   time.Time
}
