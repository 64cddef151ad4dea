package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-rental-api/internal/model"
)

var lockInvoice = regexp.QuoteMeta("SELECT amount_residual, amount_total, payment_state FROM invoices WHERE id=? FOR UPDATE")

func TestRegisterPartialPayment(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockInvoice).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"amount_residual", "amount_total", "payment_state"}).
			AddRow("100000.00", "100000.00", "not_paid"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET amount_residual=?, payment_state=? WHERE id=?")).
		WithArgs(sqlmock.AnyArg(), model.PaymentPartial, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := &model.Payment{InvoiceID: 5, ContactID: 2, Amount: decimal.NewFromInt(40000), Currency: "XOF", Method: "manual", PaidAt: time.Now()}
	var inv model.Invoice
	require.NoError(t, NewPaymentRepo(db).Register(context.Background(), p, &inv))

	assert.Equal(t, uint64(12), p.ID)
	assert.Equal(t, model.PaymentPartial, inv.PaymentState)
	assert.True(t, decimal.NewFromInt(60000).Equal(inv.AmountResidual))
}

func TestRegisterOverpaymentSettlesInvoiceAndSchedule(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockInvoice).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"amount_residual", "amount_total", "payment_state"}).
			AddRow("30000.00", "100000.00", "partial"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).WillReturnResult(sqlmock.NewResult(13, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET amount_residual=?")).
		WithArgs(sqlmock.AnyArg(), model.PaymentPaid, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_schedule_entries SET state='paid' WHERE invoice_id=?")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var inv model.Invoice
	p := &model.Payment{InvoiceID: 5, Amount: decimal.NewFromInt(50000), PaidAt: time.Now()}
	require.NoError(t, NewPaymentRepo(db).Register(context.Background(), p, &inv))
	assert.Equal(t, model.PaymentPaid, inv.PaymentState)
	assert.True(t, inv.AmountResidual.IsZero())
}

func TestRegisterRefusesPaidInvoice(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockInvoice).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"amount_residual", "amount_total", "payment_state"}).
			AddRow("0.00", "100000.00", "paid"))
	mock.ExpectRollback()

	err := NewPaymentRepo(db).Register(context.Background(), &model.Payment{InvoiceID: 5, Amount: decimal.NewFromInt(1)}, nil)
	assert.ErrorIs(t, err, ErrInvoicePaid)
}
