// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account as it is stored.
//
// PasswordHash and RefreshToken are tagged json:"-" so that an accidental
// writeJSON(w, user) can never leak them. Handlers still respond with
// PublicUser, which does not have those fields at all.
//
// RefreshToken is the single current refresh token for the account. The empty
// string means "no active session" and maps to NULL in the database.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	PasswordHash  string    `json:"-"`
	RefreshToken  string    `json:"-"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PublicUser is the projection of User that is allowed to cross the API
// boundary.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public returns the safe projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// HasSession reports whether the user currently holds a refresh token.
func (u *User) HasSession() bool {
	return u.RefreshToken != ""
}
