package domain

// Role is the authorization role of a tenant user.
type Role string

const (
	RoleOrgAdmin Role = "ORG_ADMIN"
)

// SiteConfig is the public site metadata of a tenant.
type SiteConfig struct {
	ID           string
	SiteName     string
	TemplateID   string
	PrimaryColor string
	ContactEmail string
	ContactPhone string
}

// Location is a physical place where the tenant takes bookings.
type Location struct {
	ID         string
	Name       string
	Address    string
	PostalCode string
	City       string
	Country    string
	Primary    bool
}

// PaymentSettings selects the gateway used for the tenant's own billing.
type PaymentSettings struct {
	ID       string
	Provider string
	Currency string
}

// BookingSettings holds the booking defaults of a new tenant.
type BookingSettings struct {
	ID             string
	SlotMinutes    int
	MinNoticeHours int
	MaxAdvanceDays int
	RequireDeposit bool
}

// LoyaltySettings configures the loyalty program, disabled at creation.
type LoyaltySettings struct {
	ID            string
	Enabled       bool
	PointsPerUnit int
}

// AdminUser is the single administrator created with the tenant. Its
// password hash is set in a later step.
type AdminUser struct {
	ID                 string
	Email              string
	FirstName          string
	LastName           string
	Role               Role
	MustChangePassword bool
}

// Aggregate is the tenant with every mandatory dependent, written atomically.
type Aggregate struct {
	Tenant   Tenant
	Site     SiteConfig
	Location Location
	Payment  PaymentSettings
	Booking  BookingSettings
	Loyalty  LoyaltySettings
	Admin    AdminUser
}

// AggregateRefs identifies the rows created for an aggregate.
type AggregateRefs struct {
	TenantID          string
	SiteConfigID      string
	LocationID        string
	PaymentSettingsID string
	BookingSettingsID string
	LoyaltySettingsID string
	AdminUserID       string
}

// Refs returns the identifiers of every record in the aggregate.
func (a Aggregate) Refs() AggregateRefs {
	return AggregateRefs{
		TenantID:          a.Tenant.ID,
		SiteConfigID:      a.Site.ID,
		LocationID:        a.Location.ID,
		PaymentSettingsID: a.Payment.ID,
		BookingSettingsID: a.Booking.ID,
		LoyaltySettingsID: a.Loyalty.ID,
		AdminUserID:       a.Admin.ID,
	}
}
