// Package config loads the server configuration.
//
// Values are layered, later layers winning:
//
//	defaults → YAML file (optional) → environment variables
//
// Validate runs last, so a bad value from any layer is reported at startup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	minSecretLength = 16
	minBcryptCost   = 4
	maxBcryptCost   = 31
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port        int    `yaml:"port"`
	DBDriver    string `yaml:"db_driver"`
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`

	AccessTokenSecret  string        `yaml:"access_token_secret"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
	CookieSecure       bool          `yaml:"cookie_secure"`

	UnifyLoginFailures             bool `yaml:"unify_login_failures"`
	RevokeSessionsOnPasswordChange bool `yaml:"revoke_sessions_on_password_change"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing overrides it. The token
// secrets are deliberately empty: they must be supplied.
func Default() Config {
	return Config{
		Port:               8000,
		DBDriver:           DriverSQLite,
		DBPath:             "data/accounts.db",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    10 * 24 * time.Hour,
		BcryptCost:         12,
		CookieSecure:       true,
		UnifyLoginFailures: true,
		LogLevel:           "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is ""), and the environment, then validates it.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields whose environment variable is set.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DB_DRIVER":            &c.DBDriver,
		"DB_PATH":              &c.DBPath,
		"DATABASE_URL":         &c.DatabaseURL,
		"ACCESS_TOKEN_SECRET":  &c.AccessTokenSecret,
		"REFRESH_TOKEN_SECRET": &c.RefreshTokenSecret,
		"LOG_LEVEL":            &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":        &c.Port,
		"BCRYPT_COST": &c.BcryptCost,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("config: %s=%q is not an integer", key, v)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":  &c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": &c.RefreshTokenTTL,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("config: %s=%q is not a duration: %w", key, v, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"COOKIE_SECURE":                      &c.CookieSecure,
		"UNIFY_LOGIN_FAILURES":               &c.UnifyLoginFailures,
		"REVOKE_SESSIONS_ON_PASSWORD_CHANGE": &c.RevokeSessionsOnPasswordChange,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("config: %s=%q is not a boolean", key, v)
			}
			*dst = b
		}
	}
	return nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db_driver %q", c.DBDriver))
	}

	if len(c.AccessTokenSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("access_token_secret must be at least %d characters", minSecretLength))
	}
	if len(c.RefreshTokenSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("refresh_token_secret must be at least %d characters", minSecretLength))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("access_token_ttl must be positive"))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("refresh_token_ttl must be positive"))
	}
	if c.BcryptCost < minBcryptCost || c.BcryptCost > maxBcryptCost {
		errs = append(errs, fmt.Errorf("bcrypt_cost must be between %d and %d", minBcryptCost, maxBcryptCost))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return level, nil
}
