package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

// TokenRepo persists access/refresh token pairs by hash.
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// CreatePair inserts a refresh token and its first access token in one
// transaction, filling in both IDs.
func (r *TokenRepo) CreatePair(ctx context.Context, refresh *model.RefreshToken, access *model.AccessToken) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertPair(ctx, tx, refresh, access); err != nil {
		return err
	}
	return tx.Commit()
}

// Rotate retires an active refresh token and stores its replacement pair.
// The retiring update is conditional on state='active', so of two
// concurrent rotations of the same token exactly one wins; the other gets
// ErrTokenNotActive.
func (r *TokenRepo) Rotate(ctx context.Context, oldID uint64, refresh *model.RefreshToken, access *model.AccessToken) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET state='rotated', rotated_at=? WHERE id=? AND state='active'",
		time.Now().UTC(), oldID)
	if err != nil {
		return err
	}
	if err := expectRow(res, ErrTokenNotActive); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM access_tokens WHERE refresh_token_id=?", oldID); err != nil {
		return err
	}
	if err := insertPair(ctx, tx, refresh, access); err != nil {
		return err
	}
	return tx.Commit()
}

func insertPair(ctx context.Context, tx *sqlx.Tx, refresh *model.RefreshToken, access *model.AccessToken) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (contact_id, token_hash, family_id, state, expires_at) VALUES (?,?,?,?,?)",
		refresh.ContactID, refresh.TokenHash, refresh.FamilyID, model.RefreshActive, refresh.ExpiresAt)
	if err != nil {
		return err
	}
	rid, err := res.LastInsertId()
	if err != nil {
		return err
	}
	refresh.ID = uint64(rid)
	refresh.State = model.RefreshActive

	access.RefreshID = refresh.ID
	res, err = tx.ExecContext(ctx,
		"INSERT INTO access_tokens (contact_id, token_hash, refresh_token_id, expires_at) VALUES (?,?,?,?)",
		access.ContactID, access.TokenHash, access.RefreshID, access.ExpiresAt)
	if err != nil {
		return err
	}
	aid, err := res.LastInsertId()
	if err != nil {
		return err
	}
	access.ID = uint64(aid)
	return nil
}

// FindAccess looks up an access token by hash. Expiry is the caller's call.
func (r *TokenRepo) FindAccess(ctx context.Context, hash string) (model.AccessToken, error) {
	var t model.AccessToken
	err := r.DB.GetContext(ctx, &t,
		"SELECT id,contact_id,token_hash,refresh_token_id,expires_at,created_at FROM access_tokens WHERE token_hash=? LIMIT 1",
		hash)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrTokenNotFound
	}
	return t, err
}

// FindRefresh looks up a refresh token by hash in any state.
func (r *TokenRepo) FindRefresh(ctx context.Context, hash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.GetContext(ctx, &t,
		"SELECT id,contact_id,token_hash,family_id,state,expires_at,rotated_at,created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		hash)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrTokenNotFound
	}
	return t, err
}

// RevokeFamily revokes every refresh token descended from one login and
// deletes their access tokens.
func (r *TokenRepo) RevokeFamily(ctx context.Context, familyID string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE a FROM access_tokens a JOIN refresh_tokens r ON r.id=a.refresh_token_id WHERE r.family_id=?`,
		familyID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET state='revoked' WHERE family_id=? AND state<>'revoked'", familyID); err != nil {
		return err
	}
	return tx.Commit()
}
