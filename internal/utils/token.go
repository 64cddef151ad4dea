package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purposes carried in the "purpose" claim of the JWTs this service signs.
const (
	PurposeService = "service"
	PurposeInvite  = "invite"
)

var ErrInvalidToken = errors.New("invalid token")

// NewOpaqueToken returns 32 random bytes hex encoded. Access and refresh
// tokens are opaque: all state lives server-side.
func NewOpaqueToken() (string, error) { return randomHex(32) }

// HashToken returns the SHA-256 hash of a raw token as a hex string. Only
// the hash is stored.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewOTPCode returns a uniformly random 4-digit code, zero padded.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// NewServiceToken signs an HS256 JWT for a back-office caller. subject
// names the calling system or operator; role is ADMIN or MANAGER.
func NewServiceToken(secret, subject, role string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":     subject,
		"role":    role,
		"purpose": PurposeService,
		"exp":     exp.Unix(),
		"iat":     now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// NewInviteToken signs a first-login invitation for a contact.
func NewInviteToken(secret string, contactID uint64, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":     strconv.FormatUint(contactID, 10),
		"purpose": PurposeInvite,
		"exp":     exp.Unix(),
		"iat":     now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseInviteToken validates an invitation and returns the contact id it
// was issued for.
func ParseInviteToken(secret, raw string) (uint64, error) {
	claims, err := ParseClaims(secret, raw)
	if err != nil {
		return 0, err
	}
	if p, _ := claims["purpose"].(string); p != PurposeInvite {
		return 0, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// ParseClaims verifies an HS256 JWT and returns its claims. Expiry is
// enforced by the jwt parser.
func ParseClaims(secret, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
