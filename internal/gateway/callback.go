package gateway

import (
	"encoding/json"
	"errors"
	"strings"
)

// Callback is a provider notification reduced to what the service needs.
type Callback struct {
	Reference string // transaction id or provider session id
	Status    string // succeeded | failed
}

// ErrUnknownStatus is returned for a callback whose status is neither
// final success nor final failure.
var ErrUnknownStatus = errors.New("callback status is not final")

// ParseCallback reads Wave's {"type", "data": {...}} envelope or a flat
// Orange Money notification.
func ParseCallback(body []byte) (Callback, error) {
	var raw struct {
		Type string `json:"type"`
		Data *struct {
			ID              string `json:"id"`
			ClientReference string `json:"client_reference"`
			PaymentStatus   string `json:"payment_status"`
			CheckoutStatus  string `json:"checkout_status"`
		} `json:"data"`
		TransactionID string `json:"transaction_id"`
		Reference     string `json:"reference"`
		QRID          string `json:"qrId"`
		Status        string `json:"status"`
		Metadata      struct {
			TransactionID string `json:"transaction_id"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Callback{}, err
	}

	var ref, status string
	if raw.Data != nil {
		ref = first(raw.Data.ClientReference, raw.Data.ID)
		status = first(raw.Data.PaymentStatus, raw.Data.CheckoutStatus)
		switch raw.Type {
		case "checkout.session.completed":
			status = first(status, "succeeded")
		case "checkout.session.payment_failed":
			status = "failed"
		}
	} else {
		ref = first(raw.Metadata.TransactionID, raw.TransactionID, raw.Reference, raw.QRID)
		status = raw.Status
	}
	if ref == "" {
		return Callback{}, errors.New("callback without reference")
	}
	final := FinalStatus(status)
	if final == "" {
		return Callback{Reference: ref}, ErrUnknownStatus
	}
	return Callback{Reference: ref, Status: final}, nil
}

// FinalStatus maps provider status words onto succeeded or failed, or ""
// when the status is not final.
func FinalStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "succeeded", "success", "successful", "completed", "complete", "paid":
		return "succeeded"
	case "failed", "failure", "cancelled", "canceled", "expired", "error", "rejected":
		return "failed"
	default:
		return ""
	}
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
