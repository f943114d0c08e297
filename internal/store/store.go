// Package store persists user credentials. Implementations own email
// uniqueness and apply the password hash on every write that sets a password.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/isdelr/chat-auth-be/internal/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the unique email constraint rejects a write.
	ErrEmailTaken = errors.New("email already registered")
)

// Store is the credential store.
type Store interface {
	// Create hashes password and inserts a new unverified user.
	Create(ctx context.Context, email, password string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (models.User, error)
	// SetVerificationToken overwrites the user's token and expiry in one update.
	SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error
	// MarkVerified sets isVerified and clears the token, only while the user
	// still holds token.
	MarkVerified(ctx context.Context, id, token string) error
	// SetPassword hashes plaintext and replaces the stored hash.
	SetPassword(ctx context.Context, id, plaintext string) error
	Stats(ctx context.Context) (models.AccountStats, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
