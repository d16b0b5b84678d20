package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a tenant.
type Status string

const (
	StatusTrial     Status = "TRIAL"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusCancelled Status = "CANCELLED"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventActivate   Event = "activate"
	EventSuspend    Event = "suspend"
	EventReactivate Event = "reactivate"
	EventCancel     Event = "cancel"

	// EventProvisioned is published once a tenant has been provisioned.
	// It does not move the tenant between states.
	EventProvisioned Event = "provisioned"
)

// Transition defines a valid state change: an event moves a tenant from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the tenant lifecycle.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventActivate, Src: StatusTrial, Dst: StatusActive},
	{Event: EventSuspend, Src: StatusTrial, Dst: StatusSuspended},
	{Event: EventSuspend, Src: StatusActive, Dst: StatusSuspended},
	{Event: EventReactivate, Src: StatusSuspended, Dst: StatusActive},
	{Event: EventCancel, Src: StatusTrial, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusActive, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusSuspended, Dst: StatusCancelled},
}

// TrialPeriod is the fixed window during which no recurring charge occurs.
const TrialPeriod = 30 * 24 * time.Hour

// Plan is a subscription tier.
type Plan string

const (
	PlanSolo    Plan = "SOLO"
	PlanDuo     Plan = "DUO"
	PlanTeam    Plan = "TEAM"
	PlanPremium Plan = "PREMIUM"
)

// Plans lists every tier in ascending order.
func Plans() []Plan {
	return []Plan{PlanSolo, PlanDuo, PlanTeam, PlanPremium}
}

// Valid reports whether p is a known tier.
func (p Plan) Valid() bool {
	for _, known := range Plans() {
		if p == known {
			return true
		}
	}
	return false
}

// Contact identifies the tenant owner.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// BillingDetails carries the legal and billing identity printed on documents.
type BillingDetails struct {
	LegalName  string
	TaxID      string
	Address    string
	PostalCode string
	City       string
	Country    string
	Email      string
}

// Mandate references a signed direct-debit mandate.
type Mandate struct {
	Reference     string
	SignedAt      *time.Time
	AccountHolder string
}

// Branding holds the site template choices made at signup.
type Branding struct {
	TemplateID   string
	PrimaryColor string
}

// Tenant is the core domain entity representing an organization using the platform.
type Tenant struct {
	ID            string
	Name          string
	Slug          string
	Subdomain     string
	CustomDomain  *string
	Status        Status
	Plan          Plan
	MonthlyAmount decimal.Decimal
	TrialEndsAt   time.Time
	NextBillingAt time.Time
	Features      Features
	Addons        AddonState
	Owner         Contact
	Billing       BillingDetails
	Mandate       Mandate
	Branding      Branding
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTenant creates a tenant in the initial "TRIAL" state. The trial ends
// exactly TrialPeriod after now and the first billing date follows it.
func NewTenant(id, name, slug string, plan Plan, now time.Time) Tenant {
	now = now.UTC()
	trialEnd := now.Add(TrialPeriod)
	return Tenant{
		ID:            id,
		Name:          name,
		Slug:          slug,
		Subdomain:     slug,
		Status:        StatusTrial,
		Plan:          plan,
		MonthlyAmount: decimal.Zero,
		TrialEndsAt:   trialEnd,
		NextBillingAt: trialEnd,
		Features:      Features{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
