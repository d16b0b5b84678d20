package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage is a step of the provisioning state machine.
type Stage string

const (
	StageValidating Stage = "VALIDATING"
	StagePricing    Stage = "PRICING"
	StagePersisting Stage = "PERSISTING"
	StageFinalizing Stage = "FINALIZING"
	StageEnriching  Stage = "ENRICHING"
	StageSucceeded  Stage = "SUCCEEDED"
	StageFailed     Stage = "FAILED"
)

// Criticality decides what a step failure does to the whole run.
type Criticality int

const (
	// Fatal failures abort the run and trigger compensation.
	Fatal Criticality = iota
	// BestEffort failures are recorded and the run continues.
	BestEffort
)

func (c Criticality) String() string {
	if c == Fatal {
		return "fatal"
	}
	return "best_effort"
}

// ProvisionRequest is the signup payload of a new organization.
type ProvisionRequest struct {
	Name             string
	Slug             string
	Subdomain        string
	CustomDomain     *string
	Plan             Plan
	Owner            Contact
	Billing          BillingDetails
	Mandate          Mandate
	Branding         Branding
	AddonIDs         []string
	CustomAmount     *decimal.Decimal
	FeatureOverrides map[Feature]bool
}

// Identity is the contended part of a request: slug, subdomain and domain.
type Identity struct {
	Slug         string
	Subdomain    string
	CustomDomain *string
}

// StepOutcome records how a single step ended.
type StepOutcome struct {
	Name        string
	Stage       Stage
	Criticality Criticality
	Err         error
	Duration    time.Duration
}

// Failed reports whether the step returned an error.
func (o StepOutcome) Failed() bool { return o.Err != nil }

// ProvisionResult is returned to the operator. Nil pointers mark enrichment
// that did not complete.
type ProvisionResult struct {
	TenantID            string
	AdminLogin          string
	Credential          Secret
	Status              Status
	MonthlyAmount       decimal.Decimal
	OneTimeAmount       decimal.Decimal
	TrialEndsAt         time.Time
	PaymentLink         *string
	PaymentLinkError    *string
	SetupInvoice        *DocumentRef
	SubscriptionInvoice *DocumentRef
	Contract            *DocumentRef
	EnrichmentErrors    []string
	Steps               []StepOutcome
	Stage               Stage
}
