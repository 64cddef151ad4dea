// Package repository persists the rental service's records in MySQL.
// Lookups that find nothing return the sentinel errors below so services
// can tell "absent" apart from a failing database.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrContactNotFound     = errors.New("contact not found")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenNotActive      = errors.New("refresh token is no longer active")
	ErrBuildingNotFound    = errors.New("building not found")
	ErrPropertyNotFound    = errors.New("property not found")
	ErrContractNotFound    = errors.New("contract not found")
	ErrScheduleNotFound    = errors.New("schedule entry not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrTransactionNotFound = errors.New("gateway transaction not found")
	ErrFrontConfigNotFound = errors.New("no active front config")
	ErrParamNotFound       = errors.New("parameter not found")
)

// ErrConflict is returned when an update cannot be applied because the row
// is no longer in the expected state (e.g. activating a contract whose
// property already has an active one).
var ErrConflict = errors.New("conflict")

// ErrInvoicePaid is returned when a payment targets a settled invoice.
var ErrInvoicePaid = errors.New("invoice already paid")

// isDuplicate reports a MySQL unique-key violation (error 1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}
