// Package gateway talks to the mobile-money checkout APIs. Each provider
// turns a CheckoutRequest into a remote session; persistence and
// idempotency live in the service layer.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// CheckoutRequest is what a provider needs to open a checkout session.
type CheckoutRequest struct {
	TransactionID string
	InvoiceID     uint64
	ContactID     uint64
	Amount        decimal.Decimal
	Currency      string
	Phone         string // E.164, may be empty for Wave
	Reference     string
	Description   string
	SuccessURL    string
	CancelURL     string
}

// Session is the provider's answer.
type Session struct {
	SessionID  string
	PaymentURL string
	Status     string
	Extra      map[string]string // provider specific links (deep links, QR code)
	Raw        json.RawMessage
}

// Provider opens checkout sessions on one gateway.
type Provider interface {
	Name() string
	Checkout(ctx context.Context, req CheckoutRequest) (Session, error)
}

// Error is a non-2xx answer from a provider. Message is the provider's
// own text when it sent one.
type Error struct {
	Provider string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.Status, e.Message)
}

// Canonical returns the stored gateway name for a user-supplied alias, or
// "" when the alias is unknown.
func Canonical(alias string) string {
	switch strings.ToLower(strings.TrimSpace(alias)) {
	case "wave":
		return "wave"
	case "om", "orange", "orange_money", "orangemoney":
		return "orange_money"
	default:
		return ""
	}
}

// amountString renders an amount the way both APIs expect: no decimals for
// zero-decimal currencies such as XOF.
func amountString(amount decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "XOF", "XAF", "GNF":
		return amount.Round(0).StringFixed(0)
	default:
		return amount.StringFixed(2)
	}
}

// providerError reads a failed response body into an *Error. Both APIs
// send {"message": ...}; Orange sometimes uses "detail" or "description".
func providerError(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message     string `json:"message"`
		Detail      string `json:"detail"`
		Description string `json:"description"`
		Error       string `json:"error_description"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		for _, m := range []string{payload.Message, payload.Detail, payload.Description, payload.Error} {
			if m != "" {
				msg = m
				break
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Provider: name, Status: resp.StatusCode, Message: msg}
}
