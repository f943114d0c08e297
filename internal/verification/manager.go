// Package verification issues and consumes the single-use tokens that prove
// control of an email address.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/chat-auth-be/internal/models"
	"github.com/isdelr/chat-auth-be/internal/store"
)

// TokenTTL is how long a verification token stays valid.
const TokenTTL = time.Hour

var (
	// ErrTokenNotFound is returned when no user holds the token.
	ErrTokenNotFound = errors.New("verification token not found")
	// ErrTokenExpired is returned when the token is past its expiry.
	ErrTokenExpired = errors.New("verification token expired")
)

// Manager issues and consumes verification tokens stored on user records.
type Manager struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a Manager backed by s.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s, ttl: TokenTTL, now: time.Now}
}

// WithClock replaces the manager's time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue generates a fresh token for userID, replacing any previous one.
func (m *Manager) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	expires := m.now().Add(m.ttl)
	if err := m.store.SetVerificationToken(ctx, userID, token, expires); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}

// Consume marks the holder of token verified and returns the updated user.
//
// On ErrTokenExpired the matched user is returned as well so the caller can
// issue a replacement.
func (m *Manager) Consume(ctx context.Context, token string) (models.User, error) {
	user, err := m.store.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrTokenNotFound
		}
		return models.User{}, err
	}

	if user.VerificationExpired(m.now()) {
		return user, ErrTokenExpired
	}

	if err := m.store.MarkVerified(ctx, user.ID, token); err != nil {
		// Lost a race with a re-issue or another consume.
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrTokenNotFound
		}
		return models.User{}, fmt.Errorf("mark user verified: %w", err)
	}

	user.IsVerified = true
	user.VerificationToken = ""
	user.VerificationTokenExpires = nil
	return user, nil
}
