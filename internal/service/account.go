package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/model"
	"github.com/sakif/account-service/internal/repository"
)

// AccountService handles profile and media updates. None of its methods
// touch the password hash or the refresh token.
//
// Avatar and cover image files are uploaded elsewhere; this service only
// records the resulting URL.
type AccountService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewAccountService(users repository.UserRepository, logger *slog.Logger) *AccountService {
	return &AccountService{users: users, logger: logger}
}

// UpdateAccount changes full name and email. Both are required.
func (s *AccountService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*model.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeIdentifier(email)
	if fullName == "" {
		return nil, apperror.ValidationFailed("fullName", "full name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "email must contain @")
	}

	if err := s.users.UpdateProfile(ctx, userID, fullName, email); err != nil {
		return nil, classifyStoreError(s.logger, "updating profile", err)
	}
	s.logger.Info("account details updated", slog.String("userID", userID))
	return s.reload(ctx, userID)
}

// UpdateAvatar records a new avatar URL.
func (s *AccountService) UpdateAvatar(ctx context.Context, userID, url string) (*model.PublicUser, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, apperror.ValidationFailed("avatarUrl", "avatar URL is required")
	}
	if err := s.users.UpdateAvatarURL(ctx, userID, url); err != nil {
		return nil, classifyStoreError(s.logger, "updating avatar", err)
	}
	s.logger.Info("avatar updated", slog.String("userID", userID))
	return s.reload(ctx, userID)
}

// UpdateCoverImage records a new cover image URL.
func (s *AccountService) UpdateCoverImage(ctx context.Context, userID, url string) (*model.PublicUser, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, apperror.ValidationFailed("coverImageUrl", "cover image URL is required")
	}
	if err := s.users.UpdateCoverImageURL(ctx, userID, url); err != nil {
		return nil, classifyStoreError(s.logger, "updating cover image", err)
	}
	s.logger.Info("cover image updated", slog.String("userID", userID))
	return s.reload(ctx, userID)
}

func (s *AccountService) reload(ctx context.Context, userID string) (*model.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, classifyStoreError(s.logger, "loading user", err)
	}
	public := user.Public()
	return &public, nil
}
