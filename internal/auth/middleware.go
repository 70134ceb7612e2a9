package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// AccessTokenCookie and RefreshTokenCookie are the cookie names set on login
// and refresh and cleared on logout.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// contextKey is an unexported type used for context keys in this package, so
// no other package can read or shadow the authenticated user ID.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// The access token is read from the accessToken cookie, or failing that from
// an "Authorization: Bearer <jwt>" header. A missing, malformed, badly signed
// or expired token ends the chain with 401 and the standard error body.
//
// Only the token itself is checked here. It is stateless, so a logged-out user
// keeps access until the access token expires.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID. RequireAuth uses it, and
// handler tests use it to skip the middleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request did not pass through RequireAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// BearerToken returns the token from an "Authorization: Bearer" header, or ""
// if the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	raw := ""
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		raw = BearerToken(r)
	}
	if raw == "" {
		return "", ErrTokenMalformed
	}

	c, err := tokens.Verify(raw, ClassAccess)
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "valid authentication required",
	})
}
