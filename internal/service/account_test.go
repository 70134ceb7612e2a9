package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/account-service/internal/apperror"
)

func TestUpdateAccount(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newTestAuthService(t, repo, DefaultPolicy())
	alice := registerAlice(t, authSvc)
	_, _ = authSvc.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", FullName: "Bob", Password: "secret",
	})
	svc := NewAccountService(repo, testLogger())

	tests := []struct {
		name     string
		fullName string
		email    string
		wantErr  error
	}{
		{"missing full name", " ", "a@example.com", apperror.ErrValidation},
		{"missing email", "Alice", "", apperror.ErrValidation},
		{"email without @", "Alice", "alice", apperror.ErrValidation},
		{"email taken", "Alice", "BOB@example.com", apperror.ErrConflict},
		{"ok", "Alice Pleasance", " Alice.L@Example.com ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.UpdateAccount(context.Background(), alice.ID, tt.fullName, tt.email)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UpdateAccount() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateAccount() error = %v", err)
			}
			if got.FullName != "Alice Pleasance" || got.Email != "alice.l@example.com" {
				t.Errorf("UpdateAccount() = %+v", got)
			}
		})
	}
}

// Profile updates never disturb credentials.
func TestUpdateAccount_KeepsCredentials(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newTestAuthService(t, repo, DefaultPolicy())
	alice := registerAlice(t, authSvc)
	login, _ := authSvc.Login(context.Background(), "alice", "p@ss1234")
	before, _ := repo.GetByID(context.Background(), alice.ID)

	svc := NewAccountService(repo, testLogger())
	if _, err := svc.UpdateAccount(context.Background(), alice.ID, "A", "a@example.com"); err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}

	after, _ := repo.GetByID(context.Background(), alice.ID)
	if after.PasswordHash != before.PasswordHash {
		t.Error("password hash changed")
	}
	if after.RefreshToken != login.Tokens.RefreshToken {
		t.Error("refresh token changed")
	}
}

func TestUpdateMedia(t *testing.T) {
	repo := newFakeUserRepo()
	alice := registerAlice(t, newTestAuthService(t, repo, DefaultPolicy()))
	svc := NewAccountService(repo, testLogger())
	ctx := context.Background()

	if _, err := svc.UpdateAvatar(ctx, alice.ID, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpdateAvatar(\"\") error = %v, want ErrValidation", err)
	}
	if _, err := svc.UpdateCoverImage(ctx, alice.ID, "  "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpdateCoverImage(\"\") error = %v, want ErrValidation", err)
	}

	u, err := svc.UpdateAvatar(ctx, alice.ID, "https://cdn.example.com/avatar.png")
	if err != nil {
		t.Fatalf("UpdateAvatar() error = %v", err)
	}
	if u.AvatarURL != "https://cdn.example.com/avatar.png" {
		t.Errorf("AvatarURL = %q", u.AvatarURL)
	}

	u, err = svc.UpdateCoverImage(ctx, alice.ID, "https://cdn.example.com/cover.png")
	if err != nil {
		t.Fatalf("UpdateCoverImage() error = %v", err)
	}
	if u.CoverImageURL != "https://cdn.example.com/cover.png" {
		t.Errorf("CoverImageURL = %q", u.CoverImageURL)
	}

	if _, err := svc.UpdateAvatar(ctx, "user-404", "x"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateAvatar(unknown) error = %v, want ErrNotFound", err)
	}
}
