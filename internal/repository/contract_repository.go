package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

const contractSelect = `SELECT c.id,c.reference,c.tenant_id,COALESCE(t.name,'') AS tenant_name,c.property_id,
COALESCE(p.name,'') AS property_name,c.state,c.start_date,c.end_date,c.duration_months,c.monthly_rent,c.deposit,
c.payment_day,c.payment_frequency,c.auto_generate_invoices,c.auto_send_reminders,c.currency,c.notes,
c.terminated_at,c.created_at
FROM rental_contracts c
LEFT JOIN contacts t ON t.id=c.tenant_id
LEFT JOIN properties p ON p.id=c.property_id`

// ContractFilter narrows List. Zero values are ignored.
type ContractFilter struct {
	TenantID   uint64
	PropertyID uint64
	State      string
}

type ContractRepo struct{ DB *sqlx.DB }

func NewContractRepo(db *sqlx.DB) *ContractRepo { return &ContractRepo{DB: db} }

// List returns contracts matching f, newest start date first.
func (r *ContractRepo) List(ctx context.Context, f ContractFilter) ([]model.Contract, error) {
	var (
		where []string
		args  []any
	)
	if f.TenantID != 0 {
		where = append(where, "c.tenant_id=?")
		args = append(args, f.TenantID)
	}
	if f.PropertyID != 0 {
		where = append(where, "c.property_id=?")
		args = append(args, f.PropertyID)
	}
	if f.State != "" {
		where = append(where, "c.state=?")
		args = append(args, f.State)
	}
	q := contractSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY c.start_date DESC, c.id DESC"
	var out []model.Contract
	err := r.DB.SelectContext(ctx, &out, q, args...)
	return out, err
}

// Get fetches one contract.
func (r *ContractRepo) Get(ctx context.Context, id uint64) (model.Contract, error) {
	var c model.Contract
	err := r.DB.GetContext(ctx, &c, contractSelect+" WHERE c.id=?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrContractNotFound
	}
	return c, err
}

// ActiveForProperty returns the property's active contract, if any.
func (r *ContractRepo) ActiveForProperty(ctx context.Context, propertyID uint64) (model.Contract, error) {
	var c model.Contract
	err := r.DB.GetContext(ctx, &c,
		contractSelect+" WHERE c.property_id=? AND c.state='active' ORDER BY c.id DESC LIMIT 1", propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrContractNotFound
	}
	return c, err
}

// Activate moves a draft contract to active and marks its property
// occupied. The property's other contracts are locked first; if one of
// them is active the call fails with ErrConflict.
func (r *ContractRepo) Activate(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var propertyID uint64
	err = tx.GetContext(ctx, &propertyID,
		"SELECT property_id FROM rental_contracts WHERE id=? AND state='draft' FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrContractNotFound
	}
	if err != nil {
		return err
	}
	var others int
	if err := tx.GetContext(ctx, &others,
		"SELECT COUNT(*) FROM rental_contracts WHERE property_id=? AND state='active' AND id<>? FOR UPDATE",
		propertyID, id); err != nil {
		return err
	}
	if others > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, "UPDATE rental_contracts SET state='active' WHERE id=?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE properties SET status='occupied' WHERE id=?", propertyID); err != nil {
		return err
	}
	return tx.Commit()
}

// Close moves an active contract to terminated or expired and frees its
// property. ErrContractNotFound means no active contract had that id.
func (r *ContractRepo) Close(ctx context.Context, id uint64, state string, at time.Time) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var propertyID uint64
	err = tx.GetContext(ctx, &propertyID,
		"SELECT property_id FROM rental_contracts WHERE id=? AND state='active' FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrContractNotFound
	}
	if err != nil {
		return err
	}
	var terminatedAt *time.Time
	if state == model.ContractTerminated {
		terminatedAt = &at
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE rental_contracts SET state=?, terminated_at=? WHERE id=?", state, terminatedAt, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE properties SET status='available' WHERE id=? AND status='occupied'", propertyID); err != nil {
		return err
	}
	return tx.Commit()
}
