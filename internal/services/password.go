package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperrors"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// BcryptHasher is the PasswordHasher used in production.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given work factor. Out-of-range
// costs fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a salted bcrypt hash of plain. Inputs over MaxPasswordBytes
// are a validation error; the limit counts bytes, not runes.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", apperrors.Validation(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash. Malformed hashes never match.
func (h *BcryptHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
