package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice types.
const (
	InvoiceCustomer = "out_invoice"
	InvoiceRefund   = "out_refund"
)

// Invoice states.
const (
	InvoiceDraft  = "draft"
	InvoicePosted = "posted"
	InvoiceCancel = "cancel"
)

// Payment states.
const (
	PaymentNotPaid = "not_paid"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

// Invoice is a billable document. TransactionID is assigned once and
// never changes; the three links are derived from it.
type Invoice struct {
	ID               uint64          `db:"id"`                 // invoices.id
	Number           string          `db:"number"`             // invoices.number
	MoveType         string          `db:"move_type"`          // invoices.move_type
	State            string          `db:"state"`              // invoices.state
	PaymentState     string          `db:"payment_state"`      // invoices.payment_state
	ContactID        uint64          `db:"contact_id"`         // invoices.contact_id
	ContractID       *uint64         `db:"contract_id"`        // invoices.contract_id
	PropertyName     string          `db:"property_name"`      // joined properties.name
	InvoiceDate      time.Time       `db:"invoice_date"`       // invoices.invoice_date
	DueDate          *time.Time      `db:"due_date"`           // invoices.due_date
	AmountUntaxed    decimal.Decimal `db:"amount_untaxed"`     // invoices.amount_untaxed
	AmountTax        decimal.Decimal `db:"amount_tax"`         // invoices.amount_tax
	AmountTotal      decimal.Decimal `db:"amount_total"`       // invoices.amount_total
	AmountResidual   decimal.Decimal `db:"amount_residual"`    // invoices.amount_residual
	Currency         string          `db:"currency"`           // invoices.currency
	Reference        string          `db:"reference"`          // invoices.reference
	TransactionID    string          `db:"transaction_id"`     // invoices.transaction_id
	PaymentLink      string          `db:"payment_link"`       // invoices.payment_link
	PaymentLinkWave  string          `db:"payment_link_wave"`  // invoices.payment_link_wave
	PaymentLinkOM    string          `db:"payment_link_om"`    // invoices.payment_link_om
	LastReminderDate *time.Time      `db:"last_reminder_date"` // invoices.last_reminder_date
	CreatedAt        time.Time       `db:"created_at"`         // invoices.created_at
}

// IsCustomerInvoice reports whether payment links apply to the invoice.
func (i Invoice) IsCustomerInvoice() bool { return i.MoveType == InvoiceCustomer }

// AmountDue is the residual, or the total when nothing has been computed yet.
func (i Invoice) AmountDue() decimal.Decimal {
	if i.AmountResidual.IsPositive() {
		return i.AmountResidual
	}
	if i.PaymentState == PaymentPaid {
		return decimal.Zero
	}
	return i.AmountTotal
}

// DisplayRef returns the number, or the reference when no number is set.
func (i Invoice) DisplayRef() string {
	if i.Number != "" {
		return i.Number
	}
	return i.Reference
}

// InvoiceLine is one billed item.
type InvoiceLine struct {
	ID          uint64          `db:"id"`          // invoice_lines.id
	InvoiceID   uint64          `db:"invoice_id"`  // invoice_lines.invoice_id
	Description string          `db:"description"` // invoice_lines.description
	Quantity    decimal.Decimal `db:"quantity"`    // invoice_lines.quantity
	UnitPrice   decimal.Decimal `db:"unit_price"`  // invoice_lines.unit_price
	Subtotal    decimal.Decimal `db:"subtotal"`    // invoice_lines.subtotal
}

// Payment is money received against an invoice.
type Payment struct {
	ID            uint64          `db:"id"`             // payments.id
	InvoiceID     uint64          `db:"invoice_id"`     // payments.invoice_id
	InvoiceNumber string          `db:"invoice_number"` // joined invoices.number
	ContactID     uint64          `db:"contact_id"`     // payments.contact_id
	Amount        decimal.Decimal `db:"amount"`         // payments.amount
	Currency      string          `db:"currency"`       // payments.currency
	Method        string          `db:"method"`         // payments.method (wave, orange_money, manual)
	Reference     string          `db:"reference"`      // payments.reference
	PaidAt        time.Time       `db:"paid_at"`        // payments.paid_at
	CreatedAt     time.Time       `db:"created_at"`     // payments.created_at
}
