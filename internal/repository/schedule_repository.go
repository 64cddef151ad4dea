package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

const scheduleCols = "id,contract_id,sequence,due_date,period_start,period_end,amount,invoice_id,state"

type ScheduleRepo struct{ DB *sqlx.DB }

func NewScheduleRepo(db *sqlx.DB) *ScheduleRepo { return &ScheduleRepo{DB: db} }

// ListByContract returns the contract's entries in due-date order.
func (r *ScheduleRepo) ListByContract(ctx context.Context, contractID uint64) ([]model.ScheduleEntry, error) {
	var out []model.ScheduleEntry
	err := r.DB.SelectContext(ctx, &out,
		"SELECT "+scheduleCols+" FROM payment_schedule_entries WHERE contract_id=? ORDER BY due_date, id", contractID)
	return out, err
}

// ReplacePending deletes the contract's unbilled entries and inserts
// entries in their place. Billed entries are left untouched.
func (r *ScheduleRepo) ReplacePending(ctx context.Context, contractID uint64, entries []model.ScheduleEntry) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM payment_schedule_entries WHERE contract_id=? AND state='pending' AND invoice_id IS NULL",
		contractID); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO payment_schedule_entries
			(contract_id, sequence, due_date, period_start, period_end, amount, state)
			VALUES (?,?,?,?,?,?,'pending')`,
			contractID, e.Sequence, e.DueDate, e.PeriodStart, e.PeriodEnd, e.Amount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// NextPending returns the earliest unbilled entry of a contract.
func (r *ScheduleRepo) NextPending(ctx context.Context, contractID uint64) (model.ScheduleEntry, error) {
	var e model.ScheduleEntry
	err := r.DB.GetContext(ctx, &e, "SELECT "+scheduleCols+` FROM payment_schedule_entries
		WHERE contract_id=? AND state='pending' AND invoice_id IS NULL ORDER BY due_date, id LIMIT 1`, contractID)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrScheduleNotFound
	}
	return e, err
}

// MarkInvoiced links an entry to its invoice. It fails with
// ErrScheduleNotFound when the entry was billed concurrently.
func (r *ScheduleRepo) MarkInvoiced(ctx context.Context, id, invoiceID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE payment_schedule_entries SET state='invoiced', invoice_id=? WHERE id=? AND invoice_id IS NULL",
		invoiceID, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrScheduleNotFound)
}

// Upcoming returns unbilled entries of the given contracts due on or after
// from, earliest first.
func (r *ScheduleRepo) Upcoming(ctx context.Context, contractIDs []uint64, from time.Time, limit int) ([]model.ScheduleEntry, error) {
	if len(contractIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In("SELECT "+scheduleCols+` FROM payment_schedule_entries
		WHERE contract_id IN (?) AND invoice_id IS NULL AND due_date>=? ORDER BY due_date, id LIMIT ?`,
		contractIDs, from, limit)
	if err != nil {
		return nil, err
	}
	var out []model.ScheduleEntry
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...)
	return out, err
}
