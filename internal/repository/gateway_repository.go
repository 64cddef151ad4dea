package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

const gatewayCols = `id,gateway,transaction_id,invoice_id,contact_id,amount,currency,phone,reference,status,
session_id,payment_url,extra,raw_response,created_at,updated_at`

type GatewayRepo struct{ DB *sqlx.DB }

func NewGatewayRepo(db *sqlx.DB) *GatewayRepo { return &GatewayRepo{DB: db} }

// Reserve inserts an initiating row for (gateway, transaction id). When
// the pair exists it takes the row over if it failed or has been
// initiating for longer than stale, and otherwise returns false without
// error. Only the request that reserved the row calls the provider.
func (r *GatewayRepo) Reserve(ctx context.Context, t *model.GatewayTransaction, stale time.Duration) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO gateway_transactions
		(gateway, transaction_id, invoice_id, contact_id, amount, currency, phone, reference, status, extra, raw_response)
		VALUES (?,?,?,?,?,?,?,?,'initiating','','')`,
		t.Gateway, t.TransactionID, t.InvoiceID, t.ContactID, t.Amount, t.Currency, t.Phone, t.Reference)
	if err != nil {
		if isDuplicate(err) {
			return r.takeOver(ctx, t, stale)
		}
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	t.ID = uint64(id)
	t.Status = model.TxInitiating
	return true, nil
}

func (r *GatewayRepo) takeOver(ctx context.Context, t *model.GatewayTransaction, stale time.Duration) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE gateway_transactions
		SET status='initiating', invoice_id=?, contact_id=?, amount=?, currency=?, phone=?, reference=?,
			session_id='', payment_url='', extra='', raw_response='', created_at=NOW()
		WHERE gateway=? AND transaction_id=?
			AND (status='failed' OR (status='initiating' AND created_at < NOW() - INTERVAL ? SECOND))`,
		t.InvoiceID, t.ContactID, t.Amount, t.Currency, t.Phone, t.Reference,
		t.Gateway, t.TransactionID, int64(stale/time.Second))
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}
	cur, err := r.Get(ctx, t.Gateway, t.TransactionID)
	if err != nil {
		return false, err
	}
	t.ID = cur.ID
	t.Status = model.TxInitiating
	return true, nil
}

// Get fetches the row for (gateway, transaction id).
func (r *GatewayRepo) Get(ctx context.Context, gateway, transactionID string) (model.GatewayTransaction, error) {
	var t model.GatewayTransaction
	err := r.DB.GetContext(ctx, &t,
		"SELECT "+gatewayCols+" FROM gateway_transactions WHERE gateway=? AND transaction_id=?", gateway, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrTransactionNotFound
	}
	return t, err
}

// FindByReference matches a provider callback reference against the
// transaction id or the provider session id.
func (r *GatewayRepo) FindByReference(ctx context.Context, gateway, ref string) (model.GatewayTransaction, error) {
	var t model.GatewayTransaction
	err := r.DB.GetContext(ctx, &t, "SELECT "+gatewayCols+
		" FROM gateway_transactions WHERE gateway=? AND (transaction_id=? OR session_id=?) ORDER BY id LIMIT 1",
		gateway, ref, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrTransactionNotFound
	}
	return t, err
}

// MarkPending stores the provider session on a reserved row. extra is the
// JSON object returned to clients on replay.
func (r *GatewayRepo) MarkPending(ctx context.Context, id uint64, sessionID, paymentURL, extra, raw string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE gateway_transactions
		SET status='pending', session_id=?, payment_url=?, extra=?, raw_response=? WHERE id=? AND status='initiating'`,
		sessionID, paymentURL, extra, raw, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrTransactionNotFound)
}

// Release deletes a reservation whose provider call failed so the payer
// can try again.
func (r *GatewayRepo) Release(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM gateway_transactions WHERE id=? AND status='initiating'", id)
	return err
}

// Settle moves a pending transaction to a final status. It reports false
// when the row had already left pending, so callbacks delivered twice are
// applied once.
func (r *GatewayRepo) Settle(ctx context.Context, id uint64, status string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE gateway_transactions SET status=? WHERE id=? AND status='pending'", status, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
