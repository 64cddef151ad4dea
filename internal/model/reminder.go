package model

import "time"

// Reminder channels and outcomes.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"

	ReminderSent    = "sent"
	ReminderFailed  = "failed"
	ReminderPending = "pending"
)

// ReminderHistory is one notification attempt. Rows are never updated.
type ReminderHistory struct {
	ID             uint64    `db:"id"`              // reminder_history.id
	InvoiceID      uint64    `db:"invoice_id"`      // reminder_history.invoice_id
	Channel        string    `db:"channel"`         // reminder_history.channel
	Recipient      string    `db:"recipient"`       // reminder_history.recipient
	Status         string    `db:"status"`          // reminder_history.status
	ErrorMessage   string    `db:"error_message"`   // reminder_history.error_message
	MessageContent string    `db:"message_content"` // reminder_history.message_content
	IsAutomatic    bool      `db:"is_automatic"`    // reminder_history.is_automatic
	SentAt         time.Time `db:"sent_at"`         // reminder_history.sent_at
}
