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

func TestAssignTransactionOnlyWhenEmpty(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("UPDATE invoices SET transaction_id=? WHERE id=? AND (transaction_id='' OR transaction_id=?)")
	mock.ExpectExec(q).WithArgs("TX1", 3, "TX1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("TX2", 3, "TX2").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewInvoiceRepo(db)
	ok, err := repo.AssignTransaction(context.Background(), 3, "TX1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AssignTransaction(context.Background(), 3, "TX2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetByTransactionMatchesIDOrLink(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE i.transaction_id=? OR i.payment_link=?")).
		WithArgs("TX123", "TX123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "move_type", "transaction_id", "amount_total"}).
			AddRow(9, "INV/2024/00009", "out_invoice", "TX123", "75000.00"))

	inv, err := NewInvoiceRepo(db).GetByTransaction(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), inv.ID)
	assert.True(t, inv.IsCustomerInvoice())
	assert.True(t, decimal.NewFromInt(75000).Equal(inv.AmountTotal))
}

func TestCreateNumbersInvoiceAndLines(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET number=? WHERE id=?")).
		WithArgs("INV/2025/00042", 42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoice_lines")).WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectCommit()

	inv := &model.Invoice{
		MoveType: model.InvoiceCustomer, State: model.InvoicePosted, PaymentState: model.PaymentNotPaid,
		ContactID: 1, InvoiceDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	lines := []model.InvoiceLine{{Description: "Rent March", Quantity: decimal.NewFromInt(1)}}
	require.NoError(t, NewInvoiceRepo(db).Create(context.Background(), inv, lines))

	assert.Equal(t, "INV/2025/00042", inv.Number)
	assert.Equal(t, uint64(42), lines[0].InvoiceID)
	assert.Equal(t, uint64(100), lines[0].ID)
}

func TestListOverdueUsesDateBounds(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("AND i.due_date<?")).
		WithArgs("2025-03-10", "2025-03-08").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	today := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	out, err := NewInvoiceRepo(db).ListOverdue(context.Background(), today, today.AddDate(0, 0, -2))
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
