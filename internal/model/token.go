package model

import "time"

// Refresh token states. A token moves active -> rotated when it is
// exchanged, and any state -> revoked when its family is torn down.
const (
	RefreshActive  = "active"
	RefreshRotated = "rotated"
	RefreshRevoked = "revoked"
)

// RefreshToken mirrors refresh_tokens. Only the SHA-256 hash of the raw
// value is stored. Tokens issued by rotation share the FamilyID of the
// login that started the chain.
type RefreshToken struct {
	ID        uint64     `db:"id"`         // refresh_tokens.id
	ContactID uint64     `db:"contact_id"` // refresh_tokens.contact_id
	TokenHash string     `db:"token_hash"` // refresh_tokens.token_hash
	FamilyID  string     `db:"family_id"`  // refresh_tokens.family_id
	State     string     `db:"state"`      // refresh_tokens.state
	ExpiresAt time.Time  `db:"expires_at"` // refresh_tokens.expires_at
	RotatedAt *time.Time `db:"rotated_at"` // refresh_tokens.rotated_at
	CreatedAt time.Time  `db:"created_at"` // refresh_tokens.created_at
}

// AccessToken mirrors access_tokens. Each row belongs to exactly one
// refresh token.
type AccessToken struct {
	ID        uint64    `db:"id"`               // access_tokens.id
	ContactID uint64    `db:"contact_id"`       // access_tokens.contact_id
	TokenHash string    `db:"token_hash"`       // access_tokens.token_hash
	RefreshID uint64    `db:"refresh_token_id"` // access_tokens.refresh_token_id
	ExpiresAt time.Time `db:"expires_at"`       // access_tokens.expires_at
	CreatedAt time.Time `db:"created_at"`       // access_tokens.created_at
}

// Expired reports whether the token is past its expiry at now.
func (t AccessToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
