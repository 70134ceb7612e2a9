package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/auth"
	"github.com/sakif/account-service/internal/model"
	"github.com/sakif/account-service/internal/service"
)

// AccountHandler serves profile and media updates for the logged-in user.
// The media URLs are produced by an external uploader.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type updateAvatarRequest struct {
	AvatarURL string `json:"avatarUrl"`
}

type updateCoverImageRequest struct {
	CoverImageURL string `json:"coverImageUrl"`
}

// HandleUpdateAccount → PATCH /api/v1/users/account
func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	h.update(w, r, &req, func(userID string) (*model.PublicUser, error) {
		return h.accounts.UpdateAccount(r.Context(), userID, req.FullName, req.Email)
	})
}

// HandleUpdateAvatar → PATCH /api/v1/users/avatar
func (h *AccountHandler) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	var req updateAvatarRequest
	h.update(w, r, &req, func(userID string) (*model.PublicUser, error) {
		return h.accounts.UpdateAvatar(r.Context(), userID, req.AvatarURL)
	})
}

// HandleUpdateCoverImage → PATCH /api/v1/users/cover-image
func (h *AccountHandler) HandleUpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	var req updateCoverImageRequest
	h.update(w, r, &req, func(userID string) (*model.PublicUser, error) {
		return h.accounts.UpdateCoverImage(r.Context(), userID, req.CoverImageURL)
	})
}

// update decodes the body into req, then runs apply for the current user.
func (h *AccountHandler) update(w http.ResponseWriter, r *http.Request, req any, apply func(userID string) (*model.PublicUser, error)) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	if err := decodeJSON(w, r, req); err != nil {
		writeError(w, err)
		return
	}

	user, err := apply(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
