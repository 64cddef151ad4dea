package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

// ReminderRepo appends to the reminder history. There is no update.
type ReminderRepo struct{ DB *sqlx.DB }

func NewReminderRepo(db *sqlx.DB) *ReminderRepo { return &ReminderRepo{DB: db} }

// Append stores one attempt.
func (r *ReminderRepo) Append(ctx context.Context, h *model.ReminderHistory) error {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO reminder_history
		(invoice_id, channel, recipient, status, error_message, message_content, is_automatic, sent_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		h.InvoiceID, h.Channel, h.Recipient, h.Status, h.ErrorMessage, h.MessageContent, h.IsAutomatic, h.SentAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// CountAutomaticDays returns on how many distinct days the job reminded
// the invoice.
func (r *ReminderRepo) CountAutomaticDays(ctx context.Context, invoiceID uint64) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n,
		"SELECT COUNT(DISTINCT DATE(sent_at)) FROM reminder_history WHERE invoice_id=? AND is_automatic=1", invoiceID)
	return n, err
}

// ListByInvoice returns an invoice's attempts, newest first.
func (r *ReminderRepo) ListByInvoice(ctx context.Context, invoiceID uint64) ([]model.ReminderHistory, error) {
	var out []model.ReminderHistory
	err := r.DB.SelectContext(ctx, &out, `SELECT id,invoice_id,channel,recipient,status,error_message,
		message_content,is_automatic,sent_at FROM reminder_history WHERE invoice_id=? ORDER BY sent_at DESC, id DESC`,
		invoiceID)
	return out, err
}
