package store

import (
	"context"
	"testing"
	"time"

	"github.com/isdelr/chat-auth-be/internal/auth"
	"github.com/isdelr/chat-auth-be/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db, auth.NewBcryptHasher(bcrypt.MinCost))
}

func TestSQLiteStore_CreateHashesPassword(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "a@x.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsVerified)
	assert.False(t, created.ProfileSetup)

	got, err := s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.NotEqual(t, "secret", got.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("secret")))
	assert.Nil(t, got.VerificationTokenExpires)
	assert.Nil(t, got.Color)
}

func TestSQLiteStore_DuplicateEmail(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "a@x.com", "secret")
	require.NoError(t, err)

	_, err = s.Create(ctx, "a@x.com", "other")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSQLiteStore_CreateRejectsEmptyPassword(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := s.Create(context.Background(), "a@x.com", "")
	assert.ErrorIs(t, err, auth.ErrEmptyPassword)

	_, err = s.FindByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByVerificationToken(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetVerificationToken(ctx, "missing", "t", time.Now()), ErrNotFound)
	assert.ErrorIs(t, s.SetPassword(ctx, "missing", "pw"), ErrNotFound)
}

func TestSQLiteStore_VerificationTokenOverwrite(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, "a@x.com", "secret")
	require.NoError(t, err)

	expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, s.SetVerificationToken(ctx, u.ID, "first", expires))
	require.NoError(t, s.SetVerificationToken(ctx, u.ID, "second", expires))

	_, err = s.FindByVerificationToken(ctx, "first")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.FindByVerificationToken(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.VerificationTokenExpires)
	assert.True(t, expires.Equal(*got.VerificationTokenExpires))
}

func TestSQLiteStore_MarkVerified(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, "a@x.com", "secret")
	require.NoError(t, err)
	require.NoError(t, s.SetVerificationToken(ctx, u.ID, "tok", time.Now().Add(time.Hour)))

	assert.ErrorIs(t, s.MarkVerified(ctx, u.ID, "stale"), ErrNotFound)
	require.NoError(t, s.MarkVerified(ctx, u.ID, "tok"))

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)
	assert.Empty(t, got.VerificationToken)
	assert.Nil(t, got.VerificationTokenExpires)

	_, err = s.FindByVerificationToken(ctx, "tok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SetPasswordRehashes(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, "a@x.com", "secret")
	require.NoError(t, err)

	require.NoError(t, s.SetPassword(ctx, u.ID, "new-secret"))

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, u.PasswordHash, got.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("new-secret")))
}

func TestSQLiteStore_Stats(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	a, err := s.Create(ctx, "a@x.com", "secret")
	require.NoError(t, err)
	_, err = s.Create(ctx, "b@x.com", "secret")
	require.NoError(t, err)
	require.NoError(t, s.SetVerificationToken(ctx, a.ID, "tok", time.Now().Add(time.Hour)))
	require.NoError(t, s.MarkVerified(ctx, a.ID, "tok"))

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Verified)
	assert.EqualValues(t, 1, stats.Unverified)
	assert.NoError(t, s.Ping(ctx))
}
