package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gateway identifiers as stored.
const (
	GatewayWave   = "wave"
	GatewayOrange = "orange_money"
)

// Gateway transaction statuses. A row is inserted as initiating before the
// provider is called and becomes pending once the checkout session exists.
// A failed row, or an initiating row older than the reservation TTL, is
// taken over by the next initiation.
const (
	TxInitiating = "initiating"
	TxPending    = "pending"
	TxSucceeded  = "succeeded"
	TxFailed     = "failed"
)

// GatewayTransaction mirrors one remote checkout session. (Gateway,
// TransactionID) is unique.
type GatewayTransaction struct {
	ID            uint64          `db:"id"`             // gateway_transactions.id
	Gateway       string          `db:"gateway"`        // gateway_transactions.gateway
	TransactionID string          `db:"transaction_id"` // gateway_transactions.transaction_id
	InvoiceID     uint64          `db:"invoice_id"`     // gateway_transactions.invoice_id
	ContactID     uint64          `db:"contact_id"`     // gateway_transactions.contact_id
	Amount        decimal.Decimal `db:"amount"`         // gateway_transactions.amount
	Currency      string          `db:"currency"`       // gateway_transactions.currency
	Phone         string          `db:"phone"`          // gateway_transactions.phone
	Reference     string          `db:"reference"`      // gateway_transactions.reference
	Status        string          `db:"status"`         // gateway_transactions.status
	SessionID     string          `db:"session_id"`     // gateway_transactions.session_id
	PaymentURL    string          `db:"payment_url"`    // gateway_transactions.payment_url
	Extra         string          `db:"extra"`          // gateway_transactions.extra (JSON object of provider fields)
	RawResponse   string          `db:"raw_response"`   // gateway_transactions.raw_response (JSON)
	CreatedAt     time.Time       `db:"created_at"`     // gateway_transactions.created_at
	UpdatedAt     time.Time       `db:"updated_at"`     // gateway_transactions.updated_at
}
