package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"finanzas/internal/core"

	"golang.org/x/crypto/bcrypt"
)

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", core.Validation("password must be at most %d bytes long", core.MaxPasswordBytes)
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// isHashed reports whether a stored secret is a bcrypt hash. Rows written
// before hashing was introduced hold the password itself.
func isHashed(secret string) bool {
	return strings.HasPrefix(secret, "$2a$") ||
		strings.HasPrefix(secret, "$2b$") ||
		strings.HasPrefix(secret, "$2y$")
}

// checkPassword compares a password against a stored secret. legacy is
// true when the secret was plaintext and matched, so the caller can
// upgrade it.
func checkPassword(secret, password string) (ok, legacy bool, err error) {
	if !isHashed(secret) {
		match := subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1
		return match, match, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(secret), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, false, nil
}
