package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPasswordMismatch is returned when a plaintext does not match a hash.
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrEmptyPassword is returned when hashing an empty plaintext.
	ErrEmptyPassword = errors.New("password must not be empty")
)

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, hash string) error
}

// BcryptHasher implements PasswordHasher with bcrypt. Every Hash call uses a
// freshly generated salt, so equal plaintexts yield different hashes.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost, clamped to the range
// bcrypt accepts.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare returns nil when plaintext matches hash and ErrPasswordMismatch when
// it does not. Malformed hashes surface as other errors.
func (h *BcryptHasher) Compare(plaintext, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return fmt.Errorf("failed to compare password: %w", err)
}
