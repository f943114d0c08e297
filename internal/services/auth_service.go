package services

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/isdelr/chat-auth-be/internal/auth"
	"github.com/isdelr/chat-auth-be/internal/models"
	"github.com/isdelr/chat-auth-be/internal/store"
	"github.com/isdelr/chat-auth-be/internal/verification"
	"github.com/rs/zerolog/log"
)

var (
	// ErrValidation is returned when required input is missing.
	ErrValidation = errors.New("validation failed")
	// ErrUserNotFound is returned when the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a session token is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenNotFound is returned when no account holds a verification token.
	ErrTokenNotFound = errors.New("verification token not found")
)

// Notifier hands verification emails off for delivery without blocking.
type Notifier interface {
	DispatchVerification(email, token string)
}

// VerificationPublisher announces completed verifications to live watchers.
type VerificationPublisher interface {
	PublishVerified(id, email string)
}

// AuthServiceProvider defines the interface for authentication services.
type AuthServiceProvider interface {
	Signup(ctx context.Context, email, password string) (models.Identity, error)
	Login(ctx context.Context, email, password string) (LoginResult, error)
	CheckAuth(ctx context.Context, token string) (models.Profile, error)
	GetUserInfo(ctx context.Context, userID string) (models.Profile, error)
	IsUserVerified(ctx context.Context, email string) (bool, error)
	VerifyEmail(ctx context.Context, token string) (VerifyResult, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// LoginResult is the outcome of a login attempt with valid credentials.
// Pending accounts get a fresh verification email and no session token.
type LoginResult struct {
	User    models.User
	Token   string
	Pending bool
}

// VerifyResult is the outcome of consuming a verification token. When the
// token had expired, Resent is set and a new email has been dispatched.
type VerifyResult struct {
	User   models.User
	Token  string
	Resent bool
}

// AuthService provides the signup, login and verification flows.
type AuthService struct {
	store     store.Store
	hasher    auth.PasswordHasher
	tokens    *auth.TokenIssuer
	verifier  *verification.Manager
	notifier  Notifier
	publisher VerificationPublisher
}

// NewAuthService creates a new AuthService. publisher may be nil.
func NewAuthService(s store.Store, hasher auth.PasswordHasher, tokens *auth.TokenIssuer, verifier *verification.Manager, notifier Notifier, publisher VerificationPublisher) *AuthService {
	return &AuthService{
		store:     s,
		hasher:    hasher,
		tokens:    tokens,
		verifier:  verifier,
		notifier:  notifier,
		publisher: publisher,
	}
}

type credentials struct {
	Email    string
	Password string
}

func (c credentials) validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Signup creates an unverified account and sends its verification email.
func (s *AuthService) Signup(ctx context.Context, email, password string) (models.Identity, error) {
	if err := (credentials{Email: email, Password: password}).validate(); err != nil {
		return models.Identity{}, err
	}

	user, err := s.store.Create(ctx, email, password)
	if err != nil {
		return models.Identity{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		return models.Identity{}, err
	}

	log.Info().Str("user_id", user.ID).Msg("User signed up")
	return user.Identity(), nil
}

// Login checks credentials. Verified accounts receive a session token;
// unverified ones get a new verification email instead.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if err := (credentials{Email: email, Password: password}).validate(); err != nil {
		return LoginResult{}, err
	}

	user, err := s.findUser(s.store.FindByEmail(ctx, email))
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.hasher.Compare(password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("compare password: %w", err)
	}

	if !user.IsVerified {
		if err := s.sendVerification(ctx, user); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{User: user, Pending: true}, nil
	}

	token, err := s.tokens.Issue(user.Email, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session token: %w", err)
	}
	return LoginResult{User: user, Token: token}, nil
}

// CheckAuth resolves a session token to the account's profile.
func (s *AuthService) CheckAuth(ctx context.Context, token string) (models.Profile, error) {
	if token == "" {
		return models.Profile{}, ErrUnauthorized
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return s.GetUserInfo(ctx, claims.UserID)
}

// GetUserInfo returns the profile of userID.
func (s *AuthService) GetUserInfo(ctx context.Context, userID string) (models.Profile, error) {
	user, err := s.findUser(s.store.FindByID(ctx, userID))
	if err != nil {
		return models.Profile{}, err
	}
	return user.Profile(), nil
}

// IsUserVerified reports the verification state of the account for email.
func (s *AuthService) IsUserVerified(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, fmt.Errorf("%w: email is required", ErrValidation)
	}
	user, err := s.findUser(s.store.FindByEmail(ctx, email))
	if err != nil {
		return false, err
	}
	return user.IsVerified, nil
}

// VerifyEmail consumes a verification token. An expired token triggers a new
// email; a valid one verifies the account and opens a session.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (VerifyResult, error) {
	if token == "" {
		return VerifyResult{}, fmt.Errorf("%w: token is required", ErrValidation)
	}

	user, err := s.verifier.Consume(ctx, token)
	switch {
	case errors.Is(err, verification.ErrTokenNotFound):
		return VerifyResult{}, ErrTokenNotFound
	case errors.Is(err, verification.ErrTokenExpired):
		if err := s.sendVerification(ctx, user); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{User: user, Resent: true}, nil
	case err != nil:
		return VerifyResult{}, fmt.Errorf("consume verification token: %w", err)
	}

	session, err := s.tokens.Issue(user.Email, user.ID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("issue session token: %w", err)
	}

	if s.publisher != nil {
		s.publisher.PublishVerified(user.ID, user.Email)
	}
	log.Info().Str("user_id", user.ID).Msg("Email verified")
	return VerifyResult{User: user, Token: session}, nil
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	payload := struct{ Current, Next string }{current, next}
	if err := validation.ValidateStruct(&payload,
		validation.Field(&payload.Current, validation.Required),
		validation.Field(&payload.Next, validation.Required),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.findUser(s.store.FindByID(ctx, userID))
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(current, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("compare password: %w", err)
	}

	if err := s.store.SetPassword(ctx, userID, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set password: %w", err)
	}
	log.Info().Str("user_id", userID).Msg("Password changed")
	return nil
}

// sendVerification issues a new token for user and queues the email.
func (s *AuthService) sendVerification(ctx context.Context, user models.User) error {
	token, err := s.verifier.Issue(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	s.notifier.DispatchVerification(user.Email, token)
	return nil
}

func (s *AuthService) findUser(user models.User, err error) (models.User, error) {
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
