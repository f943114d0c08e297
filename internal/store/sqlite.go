package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/chat-auth-be/internal/auth"
	"github.com/isdelr/chat-auth-be/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const userColumns = `id, email, password_hash, first_name, last_name, image, color,
	profile_setup, is_verified, verification_token, verification_token_expires, created_at, updated_at`

// SQLiteStore keeps users in the SQLite users table.
type SQLiteStore struct {
	db     *sql.DB
	hasher auth.PasswordHasher
	now    func() time.Time
}

// NewSQLiteStore creates a store over a migrated database.
func NewSQLiteStore(db *sql.DB, hasher auth.PasswordHasher) *SQLiteStore {
	return &SQLiteStore{db: db, hasher: hasher, now: time.Now}
}

func (s *SQLiteStore) Create(ctx context.Context, email, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, err
	}

	now := s.now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Email, user.PasswordHash, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (s *SQLiteStore) FindByVerificationToken(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrNotFound
	}
	return s.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE verification_token = ?", token)
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, arg any) (models.User, error) {
	var (
		user                       models.User
		firstName, lastName, image sql.NullString
		color                      sql.NullInt64
		token                      sql.NullString
		expires                    sql.NullInt64
		createdAt, updatedAt       int64
	)

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &firstName, &lastName, &image, &color,
		&user.ProfileSetup, &user.IsVerified, &token, &expires, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("query user: %w", err)
	}

	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.Image = image.String
	if color.Valid {
		c := int(color.Int64)
		user.Color = &c
	}
	user.VerificationToken = token.String
	if expires.Valid {
		t := time.UnixMilli(expires.Int64).UTC()
		user.VerificationTokenExpires = &t
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	user.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return user, nil
}

func (s *SQLiteStore) SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error {
	return s.execOne(ctx,
		"UPDATE users SET verification_token = ?, verification_token_expires = ?, updated_at = ? WHERE id = ?",
		token, expires.UnixMilli(), s.now().UnixMilli(), id)
}

func (s *SQLiteStore) MarkVerified(ctx context.Context, id, token string) error {
	return s.execOne(ctx,
		`UPDATE users SET is_verified = 1, verification_token = NULL, verification_token_expires = NULL, updated_at = ?
		WHERE id = ? AND verification_token = ?`,
		s.now().UnixMilli(), id, token)
}

func (s *SQLiteStore) SetPassword(ctx context.Context, id, plaintext string) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		hash, s.now().UnixMilli(), id)
}

func (s *SQLiteStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (models.AccountStats, error) {
	var stats models.AccountStats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(is_verified), 0) FROM users").Scan(&stats.Total, &stats.Verified)
	if err != nil {
		return models.AccountStats{}, fmt.Errorf("count users: %w", err)
	}
	stats.Unverified = stats.Total - stats.Verified
	return stats, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code&0xff == sqlite3.SQLITE_CONSTRAINT
}

var _ Store = (*SQLiteStore)(nil)
