package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/auth"
	"github.com/sakif/account-service/internal/service"
)

// CookieConfig controls the credential cookies set on login and refresh.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthHandler exposes the session lifecycle over HTTP.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account
//   - HandleLogin          → verify credentials, set both cookies
//   - HandleRefresh        → rotate the refresh token, set both cookies
//   - HandleLogout         → clear the stored session and both cookies
//   - HandleChangePassword → replace the password hash
//   - HandleMe             → return the current user's public profile
//
// Tokens travel as HttpOnly cookies for browsers and in the JSON body for API
// clients. Either source is accepted for the refresh token.
type AuthHandler struct {
	auth    *service.AuthService
	cookies CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    authService,
		cookies: cookies,
		logger:  logger,
	}
}

type registerRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	Password      string `json:"password"`
	AvatarURL     string `json:"avatarUrl"`
	CoverImageURL string `json:"coverImageUrl"`
}

// loginRequest accepts the identifier under any of three names.
type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
}

func (req loginRequest) identifier() string {
	for _, v := range []string{req.UsernameOrEmail, req.Username, req.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/v1/users/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		FullName:      req.FullName,
		Password:      req.Password,
		AvatarURL:     req.AvatarURL,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

// HandleLogin verifies credentials and starts a session.
//
// HTTP: POST /api/v1/users/login
// REQUEST BODY: {"usernameOrEmail": "alice", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.identifier(), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         res.User,
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

// HandleRefresh rotates the refresh token.
//
// HTTP: POST /api/v1/users/refresh
//
// The cookie wins over the body when both are present.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if cookie, err := r.Cookie(auth.RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		// An unreadable body simply presents no token.
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err == nil {
			presented = req.RefreshToken
		}
	}

	pair, err := h.auth.Refresh(r.Context(), presented)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookies(w, *pair)
	writeJSON(w, http.StatusOK, pair)
}

// HandleLogout ends the session.
//
// HTTP: POST /api/v1/users/logout
// Auth: Required
//
// The access token itself stays valid until it expires; what logout revokes
// is the ability to refresh.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	if err := h.auth.Logout(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	h.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleChangePassword replaces the current user's password.
//
// HTTP: POST /api/v1/users/password
// Auth: Required
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/v1/users/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		h.logger.Warn("HandleMe: lookup failed", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// setTokenCookies stores both tokens as HttpOnly cookies.
// HttpOnly keeps them away from JavaScript; SameSite=Lax keeps them off
// cross-site POSTs.
func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, h.cookie(auth.AccessTokenCookie, pair.AccessToken, int(h.cookies.AccessTTL.Seconds())))
	http.SetCookie(w, h.cookie(auth.RefreshTokenCookie, pair.RefreshToken, int(h.cookies.RefreshTTL.Seconds())))
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(auth.AccessTokenCookie, "", -1))
	http.SetCookie(w, h.cookie(auth.RefreshTokenCookie, "", -1))
}

func (h *AuthHandler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
