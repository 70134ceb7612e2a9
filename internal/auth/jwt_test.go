package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testAccessSecret  = "test-access-secret-32-chars-long!"
	testRefreshSecret = "test-refresh-secret-32-chars-long"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    10 * 24 * time.Hour,
	}
}

// newTestTokenService creates a TokenService for testing with fixed secrets.
func newTestTokenService(t *testing.T, opts ...Option) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testTokenConfig(), opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// fakeClock is a settable clock for expiry tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TokenConfig)
	}{
		{"short access secret", func(c *TokenConfig) { c.AccessSecret = "short" }},
		{"short refresh secret", func(c *TokenConfig) { c.RefreshSecret = "short" }},
		{"equal secrets", func(c *TokenConfig) { c.RefreshSecret = c.AccessSecret }},
		{"zero access ttl", func(c *TokenConfig) { c.AccessTTL = 0 }},
		{"negative refresh ttl", func(c *TokenConfig) { c.RefreshTTL = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testTokenConfig()
			tt.mutate(&cfg)
			if _, err := NewTokenService(cfg); err == nil {
				t.Fatal("NewTokenService() should have rejected the config")
			}
		})
	}
}

func TestNewTokenService_DefaultIssuer(t *testing.T) {
	ts := newTestTokenService(t)
	if ts.issuer != DefaultIssuer {
		t.Errorf("issuer = %q, want %q", ts.issuer, DefaultIssuer)
	}
}

func TestTTL(t *testing.T) {
	ts := newTestTokenService(t)
	if got := ts.TTL(ClassAccess); got != 15*time.Minute {
		t.Errorf("TTL(access) = %v, want 15m", got)
	}
	if got := ts.TTL(ClassRefresh); got != 240*time.Hour {
		t.Errorf("TTL(refresh) = %v, want 240h", got)
	}
}

// =========================================================================
// ISSUE TESTS
// =========================================================================

func TestIssueAccessToken_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.IssueAccessToken("user-123")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	// header.payload.signature
	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("token doesn't look like a JWT (expected 2 dots, got %d)", got)
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.IssueAccessToken(""); err == nil {
		t.Fatal("IssueAccessToken(\"\") should fail")
	}
	if _, err := ts.IssuePair(""); err == nil {
		t.Fatal("IssuePair(\"\") should fail")
	}
}

// Tokens minted in the same instant for the same user must still differ,
// otherwise a rotated refresh token could equal the one it replaced.
func TestIssueRefreshToken_UniqueWithinSameSecond(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	ts := newTestTokenService(t, WithClock(clock.Now))

	first, _ := ts.IssueRefreshToken("user-123")
	second, _ := ts.IssueRefreshToken("user-123")

	if first == second {
		t.Error("IssueRefreshToken() returned identical tokens for the same user and instant")
	}
}

func TestIssuePair(t *testing.T) {
	ts := newTestTokenService(t)

	pair, err := ts.IssuePair("user-abc")
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh token must differ")
	}

	access, err := ts.Verify(pair.AccessToken, ClassAccess)
	if err != nil {
		t.Fatalf("Verify(access) error = %v", err)
	}
	refresh, err := ts.Verify(pair.RefreshToken, ClassRefresh)
	if err != nil {
		t.Fatalf("Verify(refresh) error = %v", err)
	}
	if access.UserID != "user-abc" || refresh.UserID != "user-abc" {
		t.Errorf("subjects = %q/%q, want user-abc", access.UserID, refresh.UserID)
	}
	if !refresh.ExpiresAt.After(access.ExpiresAt) {
		t.Error("refresh token should outlive the access token")
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	for _, class := range []TokenClass{ClassAccess, ClassRefresh} {
		t.Run(string(class), func(t *testing.T) {
			token, err := ts.issue("user-abc-123", class)
			if err != nil {
				t.Fatalf("issue() error = %v", err)
			}
			got, err := ts.Verify(token, class)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got.UserID != "user-abc-123" {
				t.Errorf("UserID = %q, want %q", got.UserID, "user-abc-123")
			}
		})
	}
}

func TestVerify_ValidUntilExpiryThenExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	ts := newTestTokenService(t, WithClock(clock.Now))

	token, err := ts.IssueAccessToken("user-123")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	clock.Advance(14 * time.Minute)
	if _, err := ts.Verify(token, ClassAccess); err != nil {
		t.Fatalf("Verify() before expiry error = %v", err)
	}

	clock.Advance(2 * time.Minute)
	_, err = ts.Verify(token, ClassAccess)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify() after expiry error = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_WrongClassIsRejected(t *testing.T) {
	ts := newTestTokenService(t)
	pair, _ := ts.IssuePair("user-123")

	if _, err := ts.Verify(pair.AccessToken, ClassRefresh); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Errorf("access token as refresh: error = %v, want ErrTokenInvalidSignature", err)
	}
	if _, err := ts.Verify(pair.RefreshToken, ClassAccess); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Errorf("refresh token as access: error = %v, want ErrTokenInvalidSignature", err)
	}
}

// Even when the signature checks out (shared secret across two services), the
// typ claim keeps a refresh token from being used as an access token.
func TestVerify_TypeClaimChecked(t *testing.T) {
	shared := "shared-secret-between-services!!"
	issuer, err := NewTokenService(TokenConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: shared,
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	verifier, err := NewTokenService(TokenConfig{
		AccessSecret:  shared,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	refresh, _ := issuer.IssueRefreshToken("user-123")
	if _, err := verifier.Verify(refresh, ClassAccess); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalidSignature", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	ts1 := newTestTokenService(t)

	cfg := testTokenConfig()
	cfg.AccessSecret = "another-access-secret-32-chars!!"
	ts2, err := NewTokenService(cfg)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, _ := ts1.IssueAccessToken("user-123")

	if _, err := ts2.Verify(token, ClassAccess); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Fatalf("Verify() error = %v, want ErrTokenInvalidSignature", err)
	}
}

func TestVerify_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.IssueAccessToken("user-123")

	// Swap the payload for another user's payload, keeping the first signature.
	other, _ := ts.IssueAccessToken("user-999")
	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	if _, err := ts.Verify(forged, ClassAccess); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Fatalf("Verify() error = %v, want ErrTokenInvalidSignature", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	ts := newTestTokenService(t)

	for _, input := range []string{"", "not.a.jwt.token", "garbage", "a.b"} {
		t.Run(input, func(t *testing.T) {
			_, err := ts.Verify(input, ClassAccess)
			if !errors.Is(err, ErrTokenMalformed) {
				t.Errorf("Verify(%q) error = %v, want ErrTokenMalformed", input, err)
			}
		})
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	cfg := testTokenConfig()
	cfg.Issuer = "someone-else"
	foreign, err := NewTokenService(cfg)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	ts := newTestTokenService(t)

	token, _ := foreign.IssueAccessToken("user-123")
	if _, err := ts.Verify(token, ClassAccess); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("Verify() error = %v, want ErrTokenMalformed", err)
	}
}

// Claim problems on a correctly signed token are malformed, not forged.
func TestVerify_BadClaimsAreMalformed(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()

	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{
			name:   "missing exp",
			claims: jwt.MapClaims{"sub": "user-123", "iss": DefaultIssuer, "typ": "access", "iat": now.Unix()},
		},
		{
			name:   "missing sub",
			claims: jwt.MapClaims{"iss": DefaultIssuer, "typ": "access", "exp": now.Add(time.Hour).Unix()},
		},
		{
			name:   "not yet valid",
			claims: jwt.MapClaims{"sub": "user-123", "iss": DefaultIssuer, "typ": "access", "exp": now.Add(2 * time.Hour).Unix(), "nbf": now.Add(time.Hour).Unix()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString([]byte(testAccessSecret))
			if err != nil {
				t.Fatalf("signing: %v", err)
			}
			_, err = ts.Verify(signed, ClassAccess)
			if !errors.Is(err, ErrTokenMalformed) {
				t.Fatalf("Verify() error = %v, want ErrTokenMalformed", err)
			}
			if errors.Is(err, ErrTokenInvalidSignature) || errors.Is(err, ErrTokenExpired) {
				t.Errorf("Verify() error = %v matched more than one kind", err)
			}
		})
	}
}
