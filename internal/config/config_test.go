package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	accessSecret  = "access-secret-0123456789"
	refreshSecret = "refresh-secret-0123456789"
)

// envFrom turns a map into a lookup function so tests never touch the real
// environment.
func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_DefaultsPlusSecrets(t *testing.T) {
	cfg, err := load("", envFrom(map[string]string{
		"ACCESS_TOKEN_SECRET":  accessSecret,
		"REFRESH_TOKEN_SECRET": refreshSecret,
	}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	want := Default()
	want.AccessTokenSecret = accessSecret
	want.RefreshTokenSecret = refreshSecret
	if cfg != want {
		t.Errorf("load() = %+v, want %+v", cfg, want)
	}
	if cfg.RefreshTokenTTL != 240*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 240h", cfg.RefreshTokenTTL)
	}
}

func TestLoad_MissingSecretsFails(t *testing.T) {
	_, err := load("", envFrom(nil))
	if err == nil {
		t.Fatal("load() without secrets should fail")
	}
	if !strings.Contains(err.Error(), "access_token_secret") || !strings.Contains(err.Error(), "refresh_token_secret") {
		t.Errorf("error should name both secrets, got %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
port: 9000
db_driver: postgres
database_url: postgres://file/accounts
access_token_secret: file-access-secret-xxxx
refresh_token_secret: file-refresh-secret-xxxx
access_token_ttl: 5m
refresh_token_ttl: 72h
bcrypt_cost: 10
cookie_secure: false
revoke_sessions_on_password_change: true
log_level: debug
`)

	cfg, err := load(path, envFrom(map[string]string{
		"PORT":                 "9100",
		"REFRESH_TOKEN_SECRET": refreshSecret,
		"UNIFY_LOGIN_FAILURES": "false",
	}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Port (env wins)", cfg.Port, 9100},
		{"DBDriver", cfg.DBDriver, DriverPostgres},
		{"DatabaseURL", cfg.DatabaseURL, "postgres://file/accounts"},
		{"AccessTokenSecret (file)", cfg.AccessTokenSecret, "file-access-secret-xxxx"},
		{"RefreshTokenSecret (env wins)", cfg.RefreshTokenSecret, refreshSecret},
		{"AccessTokenTTL", cfg.AccessTokenTTL, 5 * time.Minute},
		{"RefreshTokenTTL", cfg.RefreshTokenTTL, 72 * time.Hour},
		{"BcryptCost", cfg.BcryptCost, 10},
		{"CookieSecure", cfg.CookieSecure, false},
		{"UnifyLoginFailures", cfg.UnifyLoginFailures, false},
		{"RevokeSessionsOnPasswordChange", cfg.RevokeSessionsOnPasswordChange, true},
		{"LogLevel", cfg.LogLevel, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_BadInputs(t *testing.T) {
	base := map[string]string{
		"ACCESS_TOKEN_SECRET":  accessSecret,
		"REFRESH_TOKEN_SECRET": refreshSecret,
	}

	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port not a number", "PORT", "eighty"},
		{"ttl not a duration", "ACCESS_TOKEN_TTL", "15 minutes"},
		{"bool not a bool", "COOKIE_SECURE", "maybe"},
		{"unknown driver", "DB_DRIVER", "mongodb"},
		{"postgres without url", "DB_DRIVER", "postgres"},
		{"equal secrets", "REFRESH_TOKEN_SECRET", accessSecret},
		{"short secret", "ACCESS_TOKEN_SECRET", "short"},
		{"negative ttl", "REFRESH_TOKEN_TTL", "-1h"},
		{"bcrypt cost too low", "BCRYPT_COST", "3"},
		{"unknown log level", "LOG_LEVEL", "chatty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range base {
				env[k] = v
			}
			env[tt.key] = tt.val

			if _, err := load("", envFrom(env)); err == nil {
				t.Fatalf("load() with %s=%q should fail", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "nope.yaml"), envFrom(nil)); err == nil {
		t.Fatal("load() with a missing file should fail")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "port: [not, an, int]\n")
	if _, err := load(path, envFrom(nil)); err == nil {
		t.Fatal("load() with invalid YAML should fail")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := Config{LogLevel: in}.SlogLevel()
		if err != nil || got != want {
			t.Errorf("SlogLevel(%q) = (%v, %v), want %v", in, got, err, want)
		}
	}
}
