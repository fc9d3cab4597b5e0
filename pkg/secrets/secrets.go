// Package secrets hashes and verifies account passwords with bcrypt.
package secrets

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "admissions/pkg/domain-errors"
)

// MaxLength is the longest password bcrypt accepts, in bytes. Login
// requests are validated against the same bound.
const MaxLength = 72

// Cost is the bcrypt work factor used for new hashes.
const Cost = bcrypt.DefaultCost

// Hash produces the value expected in ADMIN_PASSWORD_HASH.
func Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", dErrors.New(dErrors.CodeValidation, "password cannot be empty")
	case len(password) > MaxLength:
		return "", dErrors.New(dErrors.CodeValidation, "password is too long")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify returns CodeUnauthorized when password does not match hash and
// CodeInternal when hash is not a bcrypt hash.
func Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return dErrors.New(dErrors.CodeUnauthorized, "password mismatch")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}
}
