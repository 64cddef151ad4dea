package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract states.
const (
	ContractDraft      = "draft"
	ContractActive     = "active"
	ContractExpired    = "expired"
	ContractTerminated = "terminated"
)

// Payment frequencies and the number of months each one bills.
const (
	FrequencyMonthly    = "monthly"
	FrequencyQuarterly  = "quarterly"
	FrequencySemiannual = "semiannual"
	FrequencyAnnual     = "annual"
)

// FrequencyMonths maps a payment frequency to months per period. Unknown
// values are absent.
var FrequencyMonths = map[string]int{
	FrequencyMonthly:    1,
	FrequencyQuarterly:  3,
	FrequencySemiannual: 6,
	FrequencyAnnual:     12,
}

// Schedule entry states.
const (
	SchedulePending  = "pending"
	ScheduleInvoiced = "invoiced"
	SchedulePaid     = "paid"
)

// Property statuses.
const (
	PropertyAvailable   = "available"
	PropertyOccupied    = "occupied"
	PropertyMaintenance = "maintenance"
)

// Building groups rentable properties at one address.
type Building struct {
	ID          uint64    `db:"id"`          // buildings.id
	Name        string    `db:"name"`        // buildings.name
	Code        string    `db:"code"`        // buildings.code
	Street      string    `db:"street"`      // buildings.street
	City        string    `db:"city"`        // buildings.city
	Description string    `db:"description"` // buildings.description
	ManagerID   *uint64   `db:"manager_id"`  // buildings.manager_id (contact)
	Active      bool      `db:"active"`      // buildings.active
	CreatedAt   time.Time `db:"created_at"`  // buildings.created_at
}

// BuildingStats aggregates figures over a building's properties.
type BuildingStats struct {
	PropertyCount  int             `db:"property_count"`
	OccupiedCount  int             `db:"occupied_count"`
	AvailableCount int             `db:"available_count"`
	MonthlyRent    decimal.Decimal `db:"monthly_rent"`
	UnpaidTotal    decimal.Decimal `db:"unpaid_total"`
}

// OccupancyRate returns occupied/total as a percentage rounded to 2 places.
func (s BuildingStats) OccupancyRate() float64 {
	if s.PropertyCount == 0 {
		return 0
	}
	r := decimal.NewFromInt(int64(s.OccupiedCount)).
		Div(decimal.NewFromInt(int64(s.PropertyCount))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	f, _ := r.Float64()
	return f
}

// Property is a rentable unit.
type Property struct {
	ID           uint64          `db:"id"`            // properties.id
	BuildingID   *uint64         `db:"building_id"`   // properties.building_id
	BuildingName string          `db:"building_name"` // joined buildings.name
	Name         string          `db:"name"`          // properties.name
	Reference    string          `db:"reference"`     // properties.reference
	PropertyType string          `db:"property_type"` // properties.property_type
	Status       string          `db:"status"`        // properties.status
	Floor        string          `db:"floor"`         // properties.floor
	Surface      decimal.Decimal `db:"surface"`       // properties.surface (m2)
	Rooms        int             `db:"rooms"`         // properties.rooms
	MonthlyRent  decimal.Decimal `db:"monthly_rent"`  // properties.monthly_rent
	Charges      decimal.Decimal `db:"charges"`       // properties.charges
	Description  string          `db:"description"`   // properties.description
	CreatedAt    time.Time       `db:"created_at"`    // properties.created_at
}

// Contract is a lease between a tenant and a property.
type Contract struct {
	ID                   uint64          `db:"id"`                     // rental_contracts.id
	Reference            string          `db:"reference"`              // rental_contracts.reference
	TenantID             uint64          `db:"tenant_id"`              // rental_contracts.tenant_id
	TenantName           string          `db:"tenant_name"`            // joined contacts.name
	PropertyID           uint64          `db:"property_id"`            // rental_contracts.property_id
	PropertyName         string          `db:"property_name"`          // joined properties.name
	State                string          `db:"state"`                  // rental_contracts.state
	StartDate            time.Time       `db:"start_date"`             // rental_contracts.start_date
	EndDate              *time.Time      `db:"end_date"`               // rental_contracts.end_date
	DurationMonths       int             `db:"duration_months"`        // rental_contracts.duration_months
	MonthlyRent          decimal.Decimal `db:"monthly_rent"`           // rental_contracts.monthly_rent
	Deposit              decimal.Decimal `db:"deposit"`                // rental_contracts.deposit
	PaymentDay           int             `db:"payment_day"`            // rental_contracts.payment_day
	PaymentFrequency     string          `db:"payment_frequency"`      // rental_contracts.payment_frequency
	AutoGenerateInvoices bool            `db:"auto_generate_invoices"` // rental_contracts.auto_generate_invoices
	AutoSendReminders    bool            `db:"auto_send_reminders"`    // rental_contracts.auto_send_reminders
	Currency             string          `db:"currency"`               // rental_contracts.currency
	Notes                string          `db:"notes"`                  // rental_contracts.notes
	TerminatedAt         *time.Time      `db:"terminated_at"`          // rental_contracts.terminated_at
	CreatedAt            time.Time       `db:"created_at"`             // rental_contracts.created_at
}

// ScheduleEntry is one expected rent installment of a contract.
type ScheduleEntry struct {
	ID          uint64          `db:"id"`           // payment_schedule_entries.id
	ContractID  uint64          `db:"contract_id"`  // payment_schedule_entries.contract_id
	Sequence    int             `db:"sequence"`     // payment_schedule_entries.sequence
	DueDate     time.Time       `db:"due_date"`     // payment_schedule_entries.due_date
	PeriodStart time.Time       `db:"period_start"` // payment_schedule_entries.period_start
	PeriodEnd   time.Time       `db:"period_end"`   // payment_schedule_entries.period_end
	Amount      decimal.Decimal `db:"amount"`       // payment_schedule_entries.amount
	InvoiceID   *uint64         `db:"invoice_id"`   // payment_schedule_entries.invoice_id
	State       string          `db:"state"`        // payment_schedule_entries.state
}
