// Package service — authentication business logic.
//
// AuthService owns the credential and session-token lifecycle:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)  ↘ PasswordService (bcrypt)
//
// SESSION STATE (per user, refresh token only):
//
//	NoSession --login--> Active(T1) --refresh(T1)--> Active(T2)
//	Active(T2) --refresh(T1)--> rejected, stays Active(T2)
//	Active(*)  --logout--> NoSession
//
// Every method returns either a result or an *apperror.AppError. Nothing is
// retried and nothing is written to the store once a check has failed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/auth"
	"github.com/sakif/account-service/internal/model"
	"github.com/sakif/account-service/internal/repository"
)

// Policy holds the two behaviours that are a deployment decision rather than
// a fixed rule.
type Policy struct {
	// UnifyLoginFailures reports an unknown account as InvalidCredentials
	// instead of NotFound, so login cannot be used to probe for accounts.
	UnifyLoginFailures bool
	// RevokeSessionsOnPasswordChange clears the stored refresh token when the
	// password changes.
	RevokeSessionsOnPasswordChange bool
}

// DefaultPolicy unifies login failures and leaves sessions alone on password
// change.
func DefaultPolicy() Policy {
	return Policy{UnifyLoginFailures: true}
}

// AuthService handles registration, login, refresh rotation, logout and
// password change.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	policy    Policy
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	policy Policy,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		policy:    policy,
		logger:    logger,
	}
}

// RegisterInput is the data needed to create an account. Avatar and cover
// image URLs come from the upload collaborator and are optional.
type RegisterInput struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// LoginResult bundles the public user and the freshly minted pair so the
// handler can set cookies and respond in one step.
type LoginResult struct {
	User   model.PublicUser
	Tokens auth.TokenPair
}

// Register creates an account with no active session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.PublicUser, error) {
	in.Username = normalizeIdentifier(in.Username)
	in.Email = normalizeIdentifier(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	switch {
	case in.Username == "":
		return nil, apperror.ValidationFailed("username", "username is required")
	case strings.Contains(in.Username, "@"):
		return nil, apperror.ValidationFailed("username", "username must not contain @")
	case in.Email == "":
		return nil, apperror.ValidationFailed("email", "email is required")
	case !strings.Contains(in.Email, "@"):
		return nil, apperror.ValidationFailed("email", "email must contain @")
	case in.FullName == "":
		return nil, apperror.ValidationFailed("fullName", "full name is required")
	case strings.TrimSpace(in.Password) == "":
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  hash,
		AvatarURL:     strings.TrimSpace(in.AvatarURL),
		CoverImageURL: strings.TrimSpace(in.CoverImageURL),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.storeError("creating user", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	public := user.Public()
	return &public, nil
}

// Login checks identifier + password and starts a new session.
//
// The identifier is an email when it contains "@" and a username otherwise.
// Any previous refresh token is overwritten, so at most one session is live
// per user.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = normalizeIdentifier(identifier)
	if identifier == "" {
		return nil, apperror.ValidationFailed("usernameOrEmail", "username or email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	// Usernames never contain "@" and emails always do, so the identifier
	// names exactly one column.
	username, email := identifier, ""
	if strings.Contains(identifier, "@") {
		username, email = "", identifier
	}

	user, err := s.users.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("login failed: unknown account")
			s.burnPasswordCheck(password)
			if s.policy.UnifyLoginFailures {
				return nil, apperror.InvalidCredentials()
			}
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user does not exist"}
		}
		return nil, s.storeError("looking up user", err)
	}

	if err := s.verifyPassword(user, password); err != nil {
		s.logger.Info("login failed: wrong password", slog.String("userID", user.ID))
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, apperror.Internal("could not issue tokens", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, s.storeError("storing refresh token", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &LoginResult{User: user.Public(), Tokens: *pair}, nil
}

// Refresh exchanges the presented refresh token for a new pair.
//
// A refresh token is good for exactly one successful call. The stored value is
// replaced through SwapRefreshToken, so two requests racing with the same
// token cannot both win: the loser sees the rotated value and gets
// ErrTokenReuse.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*auth.TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, apperror.Unauthorized("refresh token is required")
	}

	claims, err := s.tokens.Verify(presented, auth.ClassRefresh)
	if err != nil {
		return nil, apperror.InvalidToken("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidToken("invalid refresh token")
		}
		return nil, s.storeError("loading user", err)
	}
	if user.RefreshToken != presented {
		s.logger.Warn("refresh token reuse detected", slog.String("userID", user.ID))
		return nil, apperror.TokenReuse()
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, apperror.Internal("could not issue tokens", err)
	}

	swapped, err := s.users.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		return nil, s.storeError("rotating refresh token", err)
	}
	if !swapped {
		s.logger.Warn("refresh token reuse detected", slog.String("userID", user.ID))
		return nil, apperror.TokenReuse()
	}

	s.logger.Info("refresh token rotated", slog.String("userID", user.ID))
	return pair, nil
}

// Logout clears the stored refresh token. Calling it again is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return apperror.Unauthorized("authentication required")
	}
	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		return s.storeError("clearing refresh token", err)
	}

	s.logger.Info("user logged out", slog.String("userID", userID))
	return nil
}

// ChangePassword replaces the password hash after checking the old password.
// With Policy.RevokeSessionsOnPasswordChange the refresh token is cleared in
// the same store update.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return apperror.ValidationFailed("oldPassword", "old password is required")
	}
	if strings.TrimSpace(newPassword) == "" {
		return apperror.ValidationFailed("newPassword", "new password is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return s.storeError("loading user", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.IncorrectPassword("oldPassword")
		}
		return apperror.Internal("could not verify password", err)
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, s.policy.RevokeSessionsOnPasswordChange); err != nil {
		return s.storeError("updating password", err)
	}

	s.logger.Info("password changed",
		slog.String("userID", userID),
		slog.Bool("sessionRevoked", s.policy.RevokeSessionsOnPasswordChange),
	)
	return nil
}

// CurrentUser returns the public profile for userID.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.PublicUser, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.storeError("loading user", err)
	}
	public := user.Public()
	return &public, nil
}

// burnPasswordCheck spends one bcrypt compare against a throwaway hash, so an
// unknown account takes as long to reject as a wrong password.
func (s *AuthService) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.passwords.Hash("account-does-not-exist")
		if err != nil {
			s.logger.Error("could not prepare dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_ = s.passwords.Verify(s.dummyHash, password)
	}
}

func (s *AuthService) verifyPassword(user *model.User, password string) error {
	err := s.passwords.Verify(user.PasswordHash, password)
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrPasswordMismatch) {
		return apperror.InvalidCredentials()
	}
	return apperror.Internal("could not verify password", err)
}

func (s *AuthService) hashPassword(plaintext string) (string, error) {
	hash, err := s.passwords.Hash(plaintext)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperror.ValidationFailed("password", err.Error())
		}
		return "", apperror.Internal("could not hash password", err)
	}
	return hash, nil
}

// storeError passes AppErrors from the store through and turns anything else
// into an internal error, so a broken connection never reads as "not found".
func (s *AuthService) storeError(op string, err error) error {
	return classifyStoreError(s.logger, op, err)
}

func classifyStoreError(logger *slog.Logger, op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	logger.Error("store failure", slog.String("op", op), slog.String("error", err.Error()))
	return apperror.Internal("an internal error occurred", fmt.Errorf("%s: %w", op, err))
}

// normalizeIdentifier trims and lowercases usernames and emails. Both are
// stored in this form, so lookups and UNIQUE constraints are case-insensitive.
func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
