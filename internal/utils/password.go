package utils

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Stored credential schemes.
const (
	SchemeBcrypt    = "bcrypt"
	SchemePBKDF2    = "pbkdf2-sha512"
	SchemeMD5Crypt  = "md5-crypt"
	SchemePlaintext = "plaintext"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IdentifyScheme classifies a stored credential. Anything not recognised
// as a hash is treated as legacy plaintext.
func IdentifyScheme(stored string) string {
	switch {
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return SchemeBcrypt
	case strings.HasPrefix(stored, "$pbkdf2-sha512$"):
		return SchemePBKDF2
	case strings.HasPrefix(stored, "$1$"):
		return SchemeMD5Crypt
	default:
		return SchemePlaintext
	}
}

// CheckStored compares plain against a stored credential of any scheme.
// needsRehash is true when the match succeeded on a scheme other than
// bcrypt. md5-crypt hashes are recognised but never match; those accounts
// go through the OTP reset flow.
func CheckStored(stored, plain string) (ok, needsRehash bool) {
	switch IdentifyScheme(stored) {
	case SchemeBcrypt:
		return VerifyPassword(stored, plain), false
	case SchemePBKDF2:
		ok = verifyPBKDF2(stored, plain)
		return ok, ok
	case SchemeMD5Crypt:
		return false, false
	default:
		ok = subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
		return ok, ok
	}
}

// verifyPBKDF2 checks a passlib "$pbkdf2-sha512$rounds$salt$checksum" hash.
// Salt and checksum use passlib's adapted base64 ("." for "+", no padding).
func verifyPBKDF2(stored, plain string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 5 {
		return false
	}
	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds < 1 {
		return false
	}
	salt, err := ab64Decode(parts[3])
	if err != nil {
		return false
	}
	want, err := ab64Decode(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(plain), salt, rounds, len(want), sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func ab64Decode(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}
