package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/property-rental-api/internal/model"
)

const paymentSelect = `SELECT pm.id,pm.invoice_id,COALESCE(i.number,'') AS invoice_number,pm.contact_id,pm.amount,
pm.currency,pm.method,pm.reference,pm.paid_at,pm.created_at
FROM payments pm LEFT JOIN invoices i ON i.id=pm.invoice_id`

type PaymentRepo struct{ DB *sqlx.DB }

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{DB: db} }

// Register records a payment and lowers the invoice residual under a row
// lock. The residual never goes below zero; reaching zero marks the
// invoice and its schedule entries paid. The updated invoice state is
// written back into inv.
func (r *PaymentRepo) Register(ctx context.Context, p *model.Payment, inv *model.Invoice) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var cur struct {
		Residual     decimal.Decimal `db:"amount_residual"`
		Total        decimal.Decimal `db:"amount_total"`
		PaymentState string          `db:"payment_state"`
	}
	err = tx.GetContext(ctx, &cur,
		"SELECT amount_residual, amount_total, payment_state FROM invoices WHERE id=? FOR UPDATE", p.InvoiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvoiceNotFound
	}
	if err != nil {
		return err
	}
	if cur.PaymentState == model.PaymentPaid {
		return ErrInvoicePaid
	}

	residual := cur.Residual
	if !residual.IsPositive() {
		residual = cur.Total
	}
	residual = decimal.Max(residual.Sub(p.Amount), decimal.Zero)
	state := model.PaymentPartial
	if residual.IsZero() {
		state = model.PaymentPaid
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO payments
		(invoice_id, contact_id, amount, currency, method, reference, paid_at) VALUES (?,?,?,?,?,?,?)`,
		p.InvoiceID, p.ContactID, p.Amount, p.Currency, p.Method, p.Reference, p.PaidAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)

	if _, err := tx.ExecContext(ctx,
		"UPDATE invoices SET amount_residual=?, payment_state=? WHERE id=?", residual, state, p.InvoiceID); err != nil {
		return err
	}
	if state == model.PaymentPaid {
		if _, err := tx.ExecContext(ctx,
			"UPDATE payment_schedule_entries SET state='paid' WHERE invoice_id=?", p.InvoiceID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if inv != nil {
		inv.AmountResidual = residual
		inv.PaymentState = state
	}
	return nil
}

// ListByContact returns a contact's payments, newest first.
func (r *PaymentRepo) ListByContact(ctx context.Context, contactID uint64) ([]model.Payment, error) {
	var out []model.Payment
	err := r.DB.SelectContext(ctx, &out,
		paymentSelect+" WHERE pm.contact_id=? ORDER BY pm.paid_at DESC, pm.id DESC", contactID)
	return out, err
}

// ListByInvoice returns the payments applied to an invoice, oldest first.
func (r *PaymentRepo) ListByInvoice(ctx context.Context, invoiceID uint64) ([]model.Payment, error) {
	var out []model.Payment
	err := r.DB.SelectContext(ctx, &out,
		paymentSelect+" WHERE pm.invoice_id=? ORDER BY pm.paid_at, pm.id", invoiceID)
	return out, err
}
