package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/chat-auth-be/internal/auth"
	"github.com/isdelr/chat-auth-be/internal/database"
	"github.com/isdelr/chat-auth-be/internal/store"
	"github.com/isdelr/chat-auth-be/internal/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type outbox struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct{ email, token string }

func (o *outbox) DispatchVerification(email, token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, sentMail{email, token})
}

func (o *outbox) last(t *testing.T) sentMail {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	return o.sent[len(o.sent)-1]
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type publisher struct{ verified []string }

func (p *publisher) PublishVerified(id, _ string) { p.verified = append(p.verified, id) }

type clock struct{ t time.Time }

func (c *clock) Now() time.Time         { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc    *AuthService
	store  store.Store
	tokens *auth.TokenIssuer
	mail   *outbox
	pub    *publisher
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	s := store.NewSQLiteStore(db, hasher)
	c := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	tokens := auth.NewTokenIssuer("test-secret").WithClock(c.Now)
	mgr := verification.NewManager(s).WithClock(c.Now)
	mail := &outbox{}
	pub := &publisher{}

	return &fixture{
		svc:    NewAuthService(s, hasher, tokens, mgr, mail, pub),
		store:  s,
		tokens: tokens,
		mail:   mail,
		pub:    pub,
		clock:  c,
	}
}

func (f *fixture) verified(t *testing.T, email, password string) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.svc.Signup(ctx, email, password)
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, f.mail.last(t).token)
	require.NoError(t, err)
	return id.ID
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Signup(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, id.ID)
	assert.Equal(t, "ann@example.com", id.Email)

	u, err := f.store.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", u.PasswordHash)
	assert.False(t, u.IsVerified)

	mail := f.mail.last(t)
	assert.Equal(t, "ann@example.com", mail.email)
	assert.Equal(t, u.VerificationToken, mail.token)
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Signup(context.Background(), "a@example.com", "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, f.mail.count())
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	_, err = f.svc.Signup(ctx, "ann@example.com", "other")
	assert.ErrorIs(t, err, store.ErrEmailTaken)
	assert.Equal(t, 1, f.mail.count())
}

func TestLogin_UnverifiedIsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	first := f.mail.last(t).token

	res, err := f.svc.Login(ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Empty(t, res.Token)
	assert.Equal(t, 2, f.mail.count())

	second := f.mail.last(t).token
	assert.NotEqual(t, first, second)

	// The re-issued token supersedes the first one.
	_, err = f.svc.VerifyEmail(ctx, first)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = f.svc.VerifyEmail(ctx, second)
	assert.NoError(t, err)
}

func TestLogin_Verified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.verified(t, "ann@example.com", "pw")

	res, err := f.svc.Login(ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.Equal(t, id, res.User.ID)

	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "ann@example.com", claims.Email)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verified(t, "ann@example.com", "pw")

	_, err := f.svc.Login(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.Login(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "ann@example.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.verified(t, "ann@example.com", "pw")

	token, err := f.tokens.Issue("ann@example.com", id)
	require.NoError(t, err)

	profile, err := f.svc.CheckAuth(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, profile.ID)

	_, err = f.svc.CheckAuth(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.CheckAuth(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	f.clock.Advance(auth.SessionTTL + time.Second)
	_, err = f.svc.CheckAuth(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCheckAuth_UserGone(t *testing.T) {
	f := newFixture(t)
	token, err := f.tokens.Issue("ghost@example.com", "no-such-id")
	require.NoError(t, err)

	_, err = f.svc.CheckAuth(context.Background(), token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestIsUserVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, "ann@example.com", "pw")
	require.NoError(t, err)

	ok, err := f.svc.IsUserVerified(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.VerifyEmail(ctx, f.mail.last(t).token)
	require.NoError(t, err)

	ok, err = f.svc.IsUserVerified(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.IsUserVerified(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.svc.IsUserVerified(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Signup(ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	token := f.mail.last(t).token

	res, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.False(t, res.Resent)
	assert.True(t, res.User.IsVerified)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, []string{id.ID}, f.pub.verified)

	// Tokens are single-use.
	_, err = f.svc.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = f.svc.VerifyEmail(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerifyEmail_ExpiredResendsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	old := f.mail.last(t).token

	f.clock.Advance(verification.TokenTTL + time.Minute)

	res, err := f.svc.VerifyEmail(ctx, old)
	require.NoError(t, err)
	assert.True(t, res.Resent)
	assert.Empty(t, res.Token)
	assert.Equal(t, 2, f.mail.count())
	assert.Empty(t, f.pub.verified)

	fresh := f.mail.last(t).token
	assert.NotEqual(t, old, fresh)

	_, err = f.svc.VerifyEmail(ctx, old)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.Equal(t, 2, f.mail.count())

	res, err = f.svc.VerifyEmail(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, res.Resent)
}

func TestGetUserInfo(t *testing.T) {
	f := newFixture(t)
	id := f.verified(t, "ann@example.com", "pw")

	profile, err := f.svc.GetUserInfo(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", profile.Email)
	assert.False(t, profile.ProfileSetup)

	_, err = f.svc.GetUserInfo(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.verified(t, "ann@example.com", "old-pw")

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, id, "wrong", "new-pw"), ErrInvalidCredentials)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, id, "old-pw", ""), ErrValidation)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, "missing", "old-pw", "new-pw"), ErrUserNotFound)

	require.NoError(t, f.svc.ChangePassword(ctx, id, "old-pw", "new-pw"))

	_, err := f.svc.Login(ctx, "ann@example.com", "old-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	res, err := f.svc.Login(ctx, "ann@example.com", "new-pw")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}
