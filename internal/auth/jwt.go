// Package auth provides password hashing, JWT issuance/verification and the
// HTTP middleware that authenticates requests.
//
// TOKEN CLASSES:
// Two kinds of token are issued, both HS256 JWTs:
//
//	access  → short-lived, sent on every authenticated request
//	refresh → long-lived, only used to obtain a new pair
//
// Each class is signed with its own secret, so leaking one secret cannot be
// used to forge the other class. The "typ" claim repeats the class so a token
// can never be accepted as the wrong kind even if secrets were misconfigured.
//
// Verification is pure: signature + expiry + issuer. Whether a refresh token
// is still the CURRENT one for its user is decided by the service layer
// against the store.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClass identifies which secret and lifetime a token uses.
type TokenClass string

const (
	ClassAccess  TokenClass = "access"
	ClassRefresh TokenClass = "refresh"
)

// DefaultIssuer is the "iss" claim used when TokenConfig.Issuer is empty.
const DefaultIssuer = "account-service"

const minSecretLength = 16

var (
	ErrTokenMalformed        = errors.New("auth: malformed token")
	ErrTokenInvalidSignature = errors.New("auth: invalid token signature")
	ErrTokenExpired          = errors.New("auth: token expired")
)

// TokenConfig is injected by the composition root (see internal/server).
// Nothing in this package reads the environment.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenPair is what a successful login or refresh hands to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Claims is the verified content of a token.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// claims is the JWT payload. "sub" carries the user ID and "jti" a random
// UUID, so two tokens minted for the same user in the same second still differ.
type claims struct {
	jwt.RegisteredClaims
	Type TokenClass `json:"typ"`
}

type classKey struct {
	secret []byte
	ttl    time.Duration
}

// TokenService handles JWT creation and validation for both token classes.
type TokenService struct {
	keys   map[TokenClass]classKey
	issuer string
	now    func() time.Time
}

// Option customises a TokenService.
type Option func(*TokenService)

// WithClock replaces time.Now. Tests use it to move past a token's expiry
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService validates cfg and returns a ready TokenService.
func NewTokenService(cfg TokenConfig, opts ...Option) (*TokenService, error) {
	if len(cfg.AccessSecret) < minSecretLength || len(cfg.RefreshSecret) < minSecretLength {
		return nil, fmt.Errorf("auth: token secrets must be at least %d characters", minSecretLength)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("auth: access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	s := &TokenService{
		keys: map[TokenClass]classKey{
			ClassAccess:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			ClassRefresh: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured lifetime of a token class. Handlers use it for
// cookie Max-Age.
func (s *TokenService) TTL(class TokenClass) time.Duration {
	return s.keys[class].ttl
}

// IssueAccessToken signs a short-lived access token for userID.
func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.issue(userID, ClassAccess)
}

// IssueRefreshToken signs a long-lived refresh token for userID.
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.issue(userID, ClassRefresh)
}

// IssuePair mints a fresh access + refresh token for userID.
func (s *TokenService) IssuePair(userID string) (*TokenPair, error) {
	access, err := s.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) issue(userID string, class TokenClass) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a subject")
	}
	key, ok := s.keys[class]
	if !ok {
		return "", fmt.Errorf("auth: unknown token class %q", class)
	}

	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(key.ttl)),
		},
		Type: class,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing %s token: %w", class, err)
	}
	return signed, nil
}

// Verify parses tokenStr as a token of the given class.
//
// The returned error wraps exactly one of ErrTokenMalformed,
// ErrTokenInvalidSignature or ErrTokenExpired.
//
// ALGORITHM CONFUSION:
// jwt.WithValidMethods pins HS256, so a token claiming "none" or an RSA
// algorithm is rejected before the key is ever used.
func (s *TokenService) Verify(tokenStr string, class TokenClass) (*Claims, error) {
	key, ok := s.keys[class]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token class %q", ErrTokenMalformed, class)
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(*jwt.Token) (any, error) {
			return key.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidClaims):
			// Signed by us, but the issuer is wrong or exp is missing.
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
		}
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if c.Type != class {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrTokenInvalidSignature, class, c.Type)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrTokenMalformed)
	}

	return &Claims{
		UserID:    c.Subject,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
