// Package auth implements the authentication core: password hashing, bearer
// token issuance and validation, opaque secret generation, and the identity
// service orchestrating registration, login, verification, and password
// reset.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a salted bcrypt hash at the default work factor. The
// transform is one-way; the plaintext is never stored.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword compares a candidate password against a stored hash. A
// mismatch is (false, nil); a malformed hash is (false, err). It never
// panics, so callers can treat any non-(true, nil) result as a failed
// credential check.
func VerifyPassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
