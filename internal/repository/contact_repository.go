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

const contactCols = `id,name,email,phone,mobile,street,city,country_code,job_function,parent_id,
password,is_verified,otp_code,otp_expires_at,is_tenant,whatsapp_number,preferred_payment_method,
created_at,updated_at`

// stored phone numbers are compared with separators removed
const (
	phoneExpr  = `REPLACE(REPLACE(REPLACE(phone,' ',''),'-',''),'.','')`
	mobileExpr = `REPLACE(REPLACE(REPLACE(mobile,' ',''),'-',''),'.','')`
)

type ContactRepo struct{ DB *sqlx.DB }

func NewContactRepo(db *sqlx.DB) *ContactRepo { return &ContactRepo{DB: db} }

// GetByID fetches a contact by id.
func (r *ContactRepo) GetByID(ctx context.Context, id uint64) (model.Contact, error) {
	var c model.Contact
	err := r.DB.GetContext(ctx, &c, "SELECT "+contactCols+" FROM contacts WHERE id=? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrContactNotFound
	}
	return c, err
}

// FindByEmail returns up to two contacts whose email matches
// case-insensitively. Callers treat more than one row as ambiguous.
func (r *ContactRepo) FindByEmail(ctx context.Context, email string) ([]model.Contact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out []model.Contact
	err := r.DB.SelectContext(ctx, &out,
		"SELECT "+contactCols+" FROM contacts WHERE LOWER(email)=? ORDER BY id LIMIT 2", email)
	return out, err
}

// FindByPhones returns up to two contacts whose phone or mobile equals one
// of the candidate spellings.
func (r *ContactRepo) FindByPhones(ctx context.Context, candidates []string) ([]model.Contact, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(
		"SELECT "+contactCols+" FROM contacts WHERE "+phoneExpr+" IN (?) OR "+mobileExpr+" IN (?) ORDER BY id LIMIT 2",
		candidates, candidates)
	if err != nil {
		return nil, err
	}
	var out []model.Contact
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...)
	return out, err
}

// Create inserts a contact and sets its ID.
func (r *ContactRepo) Create(ctx context.Context, c *model.Contact) error {
	res, err := r.DB.NamedExecContext(ctx, `INSERT INTO contacts
		(name,email,phone,mobile,street,city,country_code,job_function,parent_id,password,is_verified,
		 otp_code,otp_expires_at,is_tenant,whatsapp_number,preferred_payment_method)
		VALUES (:name,:email,:phone,:mobile,:street,:city,:country_code,:job_function,:parent_id,:password,:is_verified,
		 :otp_code,:otp_expires_at,:is_tenant,:whatsapp_number,:preferred_payment_method)`, c)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// UpdateProfile writes the editable profile fields. Password and
// verification are changed through their own methods.
func (r *ContactRepo) UpdateProfile(ctx context.Context, c model.Contact) error {
	res, err := r.DB.NamedExecContext(ctx, `UPDATE contacts SET
		name=:name, email=:email, phone=:phone, mobile=:mobile, street=:street, city=:city,
		country_code=:country_code, job_function=:job_function, is_tenant=:is_tenant,
		whatsapp_number=:whatsapp_number, preferred_payment_method=:preferred_payment_method
		WHERE id=:id`, c)
	if err != nil {
		return err
	}
	return expectRow(res, ErrContactNotFound)
}

// SetPassword stores a password hash; verify also marks the contact verified.
func (r *ContactRepo) SetPassword(ctx context.Context, id uint64, hash string, verify bool) error {
	q := "UPDATE contacts SET password=? WHERE id=?"
	if verify {
		q = "UPDATE contacts SET password=?, is_verified=1 WHERE id=?"
	}
	_, err := r.DB.ExecContext(ctx, q, hash, id)
	return err
}

// SetOTP replaces any previous code, so only one is ever active.
func (r *ContactRepo) SetOTP(ctx context.Context, id uint64, code string, expires time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE contacts SET otp_code=?, otp_expires_at=? WHERE id=?", code, expires, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrContactNotFound)
}

// ConfirmOTP marks the contact verified and clears the code.
func (r *ContactRepo) ConfirmOTP(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE contacts SET is_verified=1, otp_code='', otp_expires_at=NULL WHERE id=?", id)
	return err
}

// ClearOTP drops the active code without touching verification.
func (r *ContactRepo) ClearOTP(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE contacts SET otp_code='', otp_expires_at=NULL WHERE id=?", id)
	return err
}

// ResetVerification marks the contact unverified.
func (r *ContactRepo) ResetVerification(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE contacts SET is_verified=0 WHERE id=?", id)
	return err
}

// expectRow maps "no row matched" to notFound. The DSN sets
// clientFoundRows so an UPDATE that changes nothing still counts its row.
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
