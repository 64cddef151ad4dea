package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

const invoiceSelect = `SELECT i.id,i.number,i.move_type,i.state,i.payment_state,i.contact_id,i.contract_id,
COALESCE(p.name,'') AS property_name,i.invoice_date,i.due_date,i.amount_untaxed,i.amount_tax,i.amount_total,
i.amount_residual,i.currency,i.reference,i.transaction_id,i.payment_link,i.payment_link_wave,i.payment_link_om,
i.last_reminder_date,i.created_at
FROM invoices i
LEFT JOIN rental_contracts c ON c.id=i.contract_id
LEFT JOIN properties p ON p.id=c.property_id`

// InvoiceFilter narrows List. Zero values are ignored.
type InvoiceFilter struct {
	ContactID  uint64
	ContractID uint64
	PostedOnly bool // customer invoices in state posted
	UnpaidOnly bool
	Limit      int
}

type InvoiceRepo struct{ DB *sqlx.DB }

func NewInvoiceRepo(db *sqlx.DB) *InvoiceRepo { return &InvoiceRepo{DB: db} }

// Get fetches one invoice.
func (r *InvoiceRepo) Get(ctx context.Context, id uint64) (model.Invoice, error) {
	var inv model.Invoice
	err := r.DB.GetContext(ctx, &inv, invoiceSelect+" WHERE i.id=?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return inv, ErrInvoiceNotFound
	}
	return inv, err
}

// GetByTransaction finds an invoice by transaction id, or by its generic
// payment link for callers that hold the URL instead.
func (r *InvoiceRepo) GetByTransaction(ctx context.Context, ref string) (model.Invoice, error) {
	var inv model.Invoice
	err := r.DB.GetContext(ctx, &inv,
		invoiceSelect+" WHERE i.transaction_id=? OR i.payment_link=? ORDER BY i.id LIMIT 1", ref, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return inv, ErrInvoiceNotFound
	}
	return inv, err
}

// List returns invoices matching f, newest invoice date first.
func (r *InvoiceRepo) List(ctx context.Context, f InvoiceFilter) ([]model.Invoice, error) {
	var (
		where []string
		args  []any
	)
	if f.ContactID != 0 {
		where = append(where, "i.contact_id=?")
		args = append(args, f.ContactID)
	}
	if f.ContractID != 0 {
		where = append(where, "i.contract_id=?")
		args = append(args, f.ContractID)
	}
	if f.PostedOnly {
		where = append(where, "i.move_type='out_invoice' AND i.state='posted'")
	}
	if f.UnpaidOnly {
		where = append(where, "i.payment_state IN ('not_paid','partial')")
	}
	q := invoiceSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY i.invoice_date DESC, i.id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	var out []model.Invoice
	err := r.DB.SelectContext(ctx, &out, q, args...)
	return out, err
}

// Lines returns an invoice's lines.
func (r *InvoiceRepo) Lines(ctx context.Context, invoiceID uint64) ([]model.InvoiceLine, error) {
	var out []model.InvoiceLine
	err := r.DB.SelectContext(ctx, &out,
		"SELECT id,invoice_id,description,quantity,unit_price,subtotal FROM invoice_lines WHERE invoice_id=? ORDER BY id",
		invoiceID)
	return out, err
}

// Create inserts an invoice with its lines. An empty number is filled in
// as INV/<year>/<id>.
func (r *InvoiceRepo) Create(ctx context.Context, inv *model.Invoice, lines []model.InvoiceLine) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO invoices
		(number, move_type, state, payment_state, contact_id, contract_id, invoice_date, due_date,
		 amount_untaxed, amount_tax, amount_total, amount_residual, currency, reference)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inv.Number, inv.MoveType, inv.State, inv.PaymentState, inv.ContactID, inv.ContractID,
		inv.InvoiceDate, inv.DueDate, inv.AmountUntaxed, inv.AmountTax, inv.AmountTotal,
		inv.AmountResidual, inv.Currency, inv.Reference)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	if inv.Number == "" {
		inv.Number = fmt.Sprintf("INV/%d/%05d", inv.InvoiceDate.Year(), inv.ID)
		if _, err := tx.ExecContext(ctx, "UPDATE invoices SET number=? WHERE id=?", inv.Number, inv.ID); err != nil {
			return err
		}
	}
	for i := range lines {
		l := &lines[i]
		l.InvoiceID = inv.ID
		res, err := tx.ExecContext(ctx,
			"INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price, subtotal) VALUES (?,?,?,?,?)",
			l.InvoiceID, l.Description, l.Quantity, l.UnitPrice, l.Subtotal)
		if err != nil {
			return err
		}
		lid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		l.ID = uint64(lid)
	}
	return tx.Commit()
}

// AssignTransaction sets the transaction id only while it is empty. It
// reports false when a different id is already stored.
func (r *InvoiceRepo) AssignTransaction(ctx context.Context, id uint64, txID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE invoices SET transaction_id=? WHERE id=? AND (transaction_id='' OR transaction_id=?)",
		txID, id, txID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetLinks stores the three derived payment links.
func (r *InvoiceRepo) SetLinks(ctx context.Context, id uint64, generic, wave, om string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE invoices SET payment_link=?, payment_link_wave=?, payment_link_om=? WHERE id=?",
		generic, wave, om, id)
	return err
}

// ListOverdue returns posted customer invoices due before today that still
// carry a balance and were not reminded on or after remindedBefore.
func (r *InvoiceRepo) ListOverdue(ctx context.Context, today, remindedBefore time.Time) ([]model.Invoice, error) {
	var out []model.Invoice
	err := r.DB.SelectContext(ctx, &out, invoiceSelect+`
		WHERE i.move_type='out_invoice' AND i.state='posted' AND i.payment_state<>'paid'
		  AND i.amount_residual>0 AND i.due_date<?
		  AND (i.last_reminder_date IS NULL OR i.last_reminder_date<?)
		ORDER BY i.due_date, i.id`, dateOnly(today), dateOnly(remindedBefore))
	return out, err
}

// StampReminder records the day of the latest reminder attempt.
func (r *InvoiceRepo) StampReminder(ctx context.Context, id uint64, day time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE invoices SET last_reminder_date=? WHERE id=?", dateOnly(day), id)
	return err
}

func dateOnly(t time.Time) string { return t.Format(time.DateOnly) }
