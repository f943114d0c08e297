package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("super-secret")

	tok, err := issuer.Issue("a@x.com", "user-123")
	require.NoError(t, err)

	claims, err := issuer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "user-123", claims.UserID)
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := NewTokenIssuer("secret").WithClock(clock.Now)

	tok, err := issuer.Issue("a@x.com", "u1")
	require.NoError(t, err)

	clock.t = clock.t.Add(72*time.Hour - time.Second)
	_, err = issuer.Verify(tok)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Second)
	_, err = issuer.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := NewTokenIssuer("right-secret").Issue("a@x.com", "u2")
	require.NoError(t, err)

	_, err = NewTokenIssuer("wrong-secret").Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Malformed(t *testing.T) {
	_, err := NewTokenIssuer("k").Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		UserID: "u3",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("k").Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "u4"}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewTokenIssuer("k").Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
