package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/model"
	"github.com/sakif/account-service/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, full_name, password_hash, refresh_token, avatar_url, cover_image_url, created_at, updated_at`

func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.RefreshToken = ""
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.conn.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash,
		user.AvatarURL, user.CoverImageURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if field := uniqueField(err); field != "" {
			return apperror.Conflict("user", field)
		}
		return fmt.Errorf("postgres: inserting user %q: %w", user.Username, err)
	}
	return nil
}

func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE (username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '') LIMIT 1`

	u, err := scanUser(db.conn.QueryRowContext(ctx, query, username, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user does not exist"}
		}
		return nil, fmt.Errorf("postgres: looking up user by username/email: %w", err)
	}
	return u, nil
}

func (db *DB) SetRefreshToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2`

	res, err := db.conn.ExecContext(ctx, query, nullable(token), id)
	if err != nil {
		return fmt.Errorf("postgres: setting refresh token for user %s: %w", id, err)
	}
	return requireRow(res, id)
}

// SwapRefreshToken relies on the row lock taken by UPDATE: a concurrent
// statement with the same expected value re-evaluates its WHERE clause after
// the first commits and matches nothing.
func (db *DB) SwapRefreshToken(ctx context.Context, id, expected, replacement string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	query := `UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2 AND refresh_token = $3`

	res, err := db.conn.ExecContext(ctx, query, nullable(replacement), id, expected)
	if err != nil {
		return false, fmt.Errorf("postgres: swapping refresh token for user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	return n == 1, nil
}

func (db *DB) UpdatePassword(ctx context.Context, id, passwordHash string, revokeSession bool) error {
	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`
	if revokeSession {
		query = `UPDATE users SET password_hash = $1, refresh_token = NULL, updated_at = now() WHERE id = $2`
	}

	res, err := db.conn.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("postgres: updating password for user %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (db *DB) UpdateProfile(ctx context.Context, id, fullName, email string) error {
	query := `UPDATE users SET full_name = $1, email = $2, updated_at = now() WHERE id = $3`

	res, err := db.conn.ExecContext(ctx, query, fullName, email, id)
	if err != nil {
		if field := uniqueField(err); field != "" {
			return apperror.Conflict("user", field)
		}
		return fmt.Errorf("postgres: updating profile for user %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (db *DB) UpdateAvatarURL(ctx context.Context, id, url string) error {
	query := `UPDATE users SET avatar_url = $1, updated_at = now() WHERE id = $2`

	res, err := db.conn.ExecContext(ctx, query, url, id)
	if err != nil {
		return fmt.Errorf("postgres: updating avatar for user %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (db *DB) UpdateCoverImageURL(ctx context.Context, id, url string) error {
	query := `UPDATE users SET cover_image_url = $1, updated_at = now() WHERE id = $2`

	res, err := db.conn.ExecContext(ctx, query, url, id)
	if err != nil {
		return fmt.Errorf("postgres: updating cover image for user %s: %w", id, err)
	}
	return requireRow(res, id)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u       model.User
		refresh sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &refresh,
		&u.AvatarURL, &u.CoverImageURL, &u.CreatedAt, &u.UpdatedAt)
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
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
