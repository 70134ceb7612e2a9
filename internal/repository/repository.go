// Package repository defines the storage contracts the service layer depends
// on. Implementations live in sub-packages (sqlite, postgres).
package repository

import (
	"context"

	"github.com/sakif/account-service/internal/model"
)

// UserRepository is the credential store.
//
// Lookups return an error wrapping apperror.ErrNotFound when no row matches.
// Create and UpdateProfile return apperror.ErrConflict when the username or
// email is already taken.
//
// The refresh token column holds at most one token per user. "" means none.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByUsernameOrEmail matches username OR email. Either may be "".
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)

	// SetRefreshToken unconditionally replaces the stored token. Passing ""
	// clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
	// SwapRefreshToken replaces the stored token with replacement only if it
	// still equals expected, as one atomic step. It reports whether the swap
	// happened; false means another request rotated or cleared it first.
	SwapRefreshToken(ctx context.Context, id, expected, replacement string) (bool, error)

	// UpdatePassword stores a new hash. With revokeSession the refresh token
	// is cleared in the same statement.
	UpdatePassword(ctx context.Context, id, passwordHash string, revokeSession bool) error
	UpdateProfile(ctx context.Context, id, fullName, email string) error
	UpdateAvatarURL(ctx context.Context, id, url string) error
	UpdateCoverImageURL(ctx context.Context, id, url string) error
}
