package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-rental-api/internal/model"
)

func TestReserveInsertsInitiatingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gateway_transactions")).
		WithArgs("wave", "TX123", 10, 4, sqlmock.AnyArg(), "XOF", "", "INV/2024/00010").
		WillReturnResult(sqlmock.NewResult(99, 1))

	tx := &model.GatewayTransaction{
		Gateway: "wave", TransactionID: "TX123", InvoiceID: 10, ContactID: 4,
		Amount: decimal.NewFromInt(5000), Currency: "XOF", Reference: "INV/2024/00010",
	}
	fresh, err := NewGatewayRepo(db).Reserve(context.Background(), tx, time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, uint64(99), tx.ID)
	assert.Equal(t, model.TxInitiating, tx.Status)
}

func TestReserveReportsExistingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gateway_transactions")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'wave-TX123'"})
	mock.ExpectExec(takeOverQuery).
		WithArgs(0, 0, sqlmock.AnyArg(), "", "", "", "wave", "TX123", 60).
		WillReturnResult(sqlmock.NewResult(0, 0))

	fresh, err := NewGatewayRepo(db).Reserve(context.Background(), &model.GatewayTransaction{Gateway: "wave", TransactionID: "TX123"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestReservePropagatesOtherErrors(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gateway_transactions")).WillReturnError(boom)

	_, err := NewGatewayRepo(db).Reserve(context.Background(), &model.GatewayTransaction{}, time.Minute)
	assert.ErrorIs(t, err, boom)
}

var takeOverQuery = `UPDATE gateway_transactions\s+SET status='initiating'.+status='failed' OR \(status='initiating' AND created_at < NOW\(\) - INTERVAL \? SECOND\)`

func TestReserveTakesOverStaleRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gateway_transactions")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'orange_money-TX9'"})
	mock.ExpectExec(takeOverQuery).
		WithArgs(10, 4, sqlmock.AnyArg(), "XOF", "+221771234567", "INV-1", "orange_money", "TX9", 120).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM gateway_transactions WHERE gateway=\? AND transaction_id=\?`).
		WithArgs("orange_money", "TX9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "gateway", "transaction_id", "status"}).
			AddRow(7, "orange_money", "TX9", "initiating"))

	tx := &model.GatewayTransaction{
		Gateway: "orange_money", TransactionID: "TX9", InvoiceID: 10, ContactID: 4,
		Amount: decimal.NewFromInt(5000), Currency: "XOF", Phone: "+221771234567", Reference: "INV-1",
	}
	fresh, err := NewGatewayRepo(db).Reserve(context.Background(), tx, 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, uint64(7), tx.ID)
	assert.Equal(t, model.TxInitiating, tx.Status)
}

func TestMarkPendingStoresExtra(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE gateway_transactions\s+SET status='pending'`).
		WithArgs("qr-1", "om://pay", `{"short_link":"https://s.om/x"}`, `{}`, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewGatewayRepo(db).MarkPending(context.Background(), 7, "qr-1", "om://pay", `{"short_link":"https://s.om/x"}`, `{}`)
	require.NoError(t, err)
}

func TestSettleAppliesOnce(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("UPDATE gateway_transactions SET status=? WHERE id=? AND status='pending'")
	mock.ExpectExec(q).WithArgs(model.TxSucceeded, 5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(model.TxSucceeded, 5).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewGatewayRepo(db)
	ok, err := repo.Settle(context.Background(), 5, model.TxSucceeded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Settle(context.Background(), 5, model.TxSucceeded)
	require.NoError(t, err)
	assert.False(t, ok)
}
