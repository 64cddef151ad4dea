// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumers.
package queue

// Queue names. Both queues are durable.
const (
	PaymentInitiatedQueue      = "payment.initiated"
	NotificationRequestedQueue = "notification.requested"
)

// PaymentInitiatedEvent is published once a gateway checkout session has
// been stored. It carries enough to audit the attempt without a DB read.
type PaymentInitiatedEvent struct {
	TransactionID string `json:"transaction_id"`
	Gateway       string `json:"gateway"`
	InvoiceID     uint64 `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	ContactID     uint64 `json:"contact_id"`
	Amount        string `json:"amount"` // decimal string
	Currency      string `json:"currency"`
	SessionID     string `json:"session_id"`
	PaymentURL    string `json:"payment_url"`
	InitiatedAt   string `json:"initiated_at"` // RFC 3339
}

// NotificationRequestedEvent asks the worker to send an invoice to its
// contact over Channel (email, sms or all).
type NotificationRequestedEvent struct {
	InvoiceID   uint64 `json:"invoice_id"`
	Channel     string `json:"channel"`
	RequestedAt string `json:"requested_at"`
}
