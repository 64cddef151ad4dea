package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-rental-api/internal/model"
)

func timeNow() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

func TestActivateRefusesSecondActiveContract(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT property_id FROM rental_contracts WHERE id=? AND state='draft' FOR UPDATE")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"property_id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM rental_contracts WHERE property_id=? AND state='active'")).
		WithArgs(11, 2).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	err := NewContractRepo(db).Activate(context.Background(), 2)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestActivateMarksPropertyOccupied(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("state='draft' FOR UPDATE")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"property_id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(11, 2).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rental_contracts SET state='active' WHERE id=?")).
		WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE properties SET status='occupied' WHERE id=?")).
		WithArgs(11).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewContractRepo(db).Activate(context.Background(), 2))
}

func TestCloseRequiresActiveContract(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("state='active' FOR UPDATE")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"property_id"}))
	mock.ExpectRollback()

	err := NewContractRepo(db).Close(context.Background(), 2, model.ContractTerminated, timeNow())
	assert.ErrorIs(t, err, ErrContractNotFound)
}
