package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/model"
	"github.com/sakif/account-service/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, full_name, password_hash, refresh_token,
	avatar_url, cover_image_url, created_at, updated_at`

// Create inserts a new user. ID and timestamps are filled in on the struct.
//
// The refresh token is always written as NULL: a freshly registered account
// has no session until it logs in.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.RefreshToken = ""
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, full_name, password_hash, refresh_token,
		                    avatar_url, cover_image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AvatarURL,
		user.CoverImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", conflictField(err))
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByUsernameOrEmail returns the first user whose username equals username
// or whose email equals email.
func (db *DB) GetByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE (username = ? AND ? <> '') OR (email = ? AND ? <> '')
		 LIMIT 1`,
		username, username, email, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user does not exist"}
		}
		return nil, fmt.Errorf("sqlite: looking up user by username/email: %w", err)
	}
	return u, nil
}

// SetRefreshToken overwrites the stored refresh token. "" stores NULL.
func (db *DB) SetRefreshToken(ctx context.Context, id, token string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`,
		nullable(token), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: setting refresh token for user %s: %w", id, err)
	}
	return requireRow(res, id)
}

// SwapRefreshToken is the compare-and-set used by refresh rotation.
//
// The WHERE clause carries the expected value, so the check and the write are
// one statement. Of two racing callers presenting the same token, the second
// matches zero rows.
func (db *DB) SwapRefreshToken(ctx context.Context, id, expected, replacement string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ?
		 WHERE id = ? AND refresh_token = ?`,
		nullable(replacement), time.Now().UTC(), id, expected)
	if err != nil {
		return false, fmt.Errorf("sqlite: swapping refresh token for user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdatePassword stores a new hash, optionally clearing the session in the
// same statement.
func (db *DB) UpdatePassword(ctx context.Context, id, passwordHash string, revokeSession bool) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	if revokeSession {
		query = `UPDATE users SET password_hash = ?, refresh_token = NULL, updated_at = ? WHERE id = ?`
	}

	res, err := db.conn.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", id, err)
	}
	return requireRow(res, id)
}

// UpdateProfile changes full name and email. A taken email is a conflict.
func (db *DB) UpdateProfile(ctx context.Context, id, fullName, email string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?`,
		fullName, email, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", conflictField(err))
		}
		return fmt.Errorf("sqlite: updating profile for user %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (db *DB) UpdateAvatarURL(ctx context.Context, id, url string) error {
	return db.updateColumn(ctx, id, "avatar_url", url)
}

func (db *DB) UpdateCoverImageURL(ctx context.Context, id, url string) error {
	return db.updateColumn(ctx, id, "cover_image_url", url)
}

// updateColumn sets a single text column. column is always a constant from
// this file, never user input.
func (db *DB) updateColumn(ctx context.Context, id, column, value string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s for user %s: %w", column, id, err)
	}
	return requireRow(res, id)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u       model.User
		refresh sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&refresh,
		&u.AvatarURL,
		&u.CoverImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.RefreshToken = refresh.String
	return &u, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// conflictField names the column from SQLite's
// "UNIQUE constraint failed: users.email" message.
func conflictField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return "username"
	case strings.Contains(msg, "users.email"):
		return "email"
	default:
		return "username or email"
	}
}
