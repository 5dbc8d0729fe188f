package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urielparavi/natours-auth/internal/infrastructure/database"
)

// ReadOptions widens a default read. By default only active users are
// visible and the password hash is not loaded.
type ReadOptions struct {
	WithPassword    bool
	IncludeInactive bool
}

// ListFilter narrows List. Zero values mean no constraint.
type ListFilter struct {
	Role            Role
	IncludeInactive bool
	Limit           int
	Offset          int
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

// UserRepository is the credential store.
//
// Save writes every mutable field of an existing record in one statement
// and performs no record validation. An empty PasswordHash leaves the
// stored hash untouched, so a record read without WithPassword can be
// saved safely.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string, opts ReadOptions) (*User, error)
	FindByEmail(ctx context.Context, email string, opts ReadOptions) (*User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	Save(ctx context.Context, user *User) error
	List(ctx context.Context, filter ListFilter) ([]User, error)
	Count(ctx context.Context) (int, error)
}

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
	password_reset_token, password_reset_expires, active, created_at, updated_at`

// Create inserts a new user account. The ID is generated if empty.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.PasswordHash == "" {
		return errors.New("creating user: password hash is empty")
	}
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.Photo == "" {
		user.Photo = DefaultPhoto
	}
	user.Email = NormalizeEmail(user.Email)

	now := nowSecond()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.Photo, string(user.Role),
		user.PasswordHash, formatTimePtr(user.PasswordChangedAt),
		nullString(user.PasswordResetTokenHash), formatTimePtr(user.PasswordResetExpiresAt),
		boolToInt(user.Active), formatTime(now), formatTime(now),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

// FindByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) FindByID(ctx context.Context, id string, opts ReadOptions) (*User, error) {
	return r.getUser(ctx, opts, "id = ?", id)
}

// FindByEmail retrieves a user by email address, case-insensitively.
func (r *SQLiteUserRepository) FindByEmail(ctx context.Context, email string, opts ReadOptions) (*User, error) {
	return r.getUser(ctx, opts, "email = ?", NormalizeEmail(email))
}

// FindByResetToken retrieves the active user holding tokenHash with an
// expiry after now. The hash is loaded so the caller can replace it.
func (r *SQLiteUserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	if tokenHash == "" {
		return nil, ErrUserNotFound
	}
	return r.getUser(ctx, ReadOptions{WithPassword: true},
		"password_reset_token = ? AND password_reset_expires > ?",
		tokenHash, formatTime(now))
}

// Save writes name, email, photo, role, password fields, the reset pair
// and the active flag in a single UPDATE.
func (r *SQLiteUserRepository) Save(ctx context.Context, user *User) error {
	now := nowSecond()
	user.Email = NormalizeEmail(user.Email)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			name = ?, email = ?, photo = ?, role = ?,
			password_hash = COALESCE(NULLIF(?, ''), password_hash),
			password_changed_at = ?,
			password_reset_token = ?, password_reset_expires = ?,
			active = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name, user.Email, user.Photo, string(user.Role),
		user.PasswordHash,
		formatTimePtr(user.PasswordChangedAt),
		nullString(user.PasswordResetTokenHash), formatTimePtr(user.PasswordResetExpiresAt),
		boolToInt(user.Active), formatTime(now), user.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("saving user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	user.UpdatedAt = now
	return nil
}

// List returns users ordered by creation date.
func (r *SQLiteUserRepository) List(ctx context.Context, filter ListFilter) ([]User, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeInactive {
		where = append(where, "active = 1")
	}
	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(filter.Role))
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, filter.limit(), max(filter.Offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUserFrom(rows, ReadOptions{})
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// Count returns the total number of user accounts, active or not.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, opts ReadOptions, cond string, args ...any) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + cond
	if !opts.IncludeInactive {
		query += " AND active = 1"
	}
	return scanUserFrom(r.db.QueryRowContext(ctx, query, args...), opts)
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows). The password
// hash is dropped unless opts asks for it.
func scanUserFrom(s scanner, opts ReadOptions) (*User, error) {
	var u User
	var role, hash string
	var changedAt, resetToken, resetExpires sql.NullString
	var active int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Photo, &role,
		&hash, &changedAt, &resetToken, &resetExpires,
		&active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = Role(role)
	u.Active = active != 0
	if opts.WithPassword {
		u.PasswordHash = hash
	}
	u.PasswordChangedAt = parseTimePtr(changedAt)
	if resetToken.Valid {
		u.PasswordResetTokenHash = resetToken.String
	}
	u.PasswordResetExpiresAt = parseTimePtr(resetExpires)

	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

// Timestamps are stored as RFC3339 UTC at second precision, which sorts
// and compares lexically.

func nowSecond() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
