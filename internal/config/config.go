// Package config loads runtime settings from an optional .env file and the
// process environment.
//
// PRECEDENCE:
// real environment > .env file > envDefault tag. godotenv never overrides a
// variable that is already set, so an exported SESSION_SECRET always wins
// over the one in .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/sakif/userbase/internal/auth"
)

// Config is read once at startup and passed down; nothing reads the
// environment after Load returns.
type Config struct {
	Port          int           `env:"PORT"           envDefault:"8080"`
	DBPath        string        `env:"DB_PATH"        envDefault:"data/users.db"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL"    envDefault:"168h"`
	CookieSecure  bool          `env:"COOKIE_SECURE"  envDefault:"false"`
	LogLevel      string        `env:"LOG_LEVEL"      envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT"     envDefault:"text"`
	BcryptCost    int           `env:"BCRYPT_COST"    envDefault:"12"`
}

// Load reads envFile (if it exists), parses the environment into a Config
// and validates it. An empty envFile skips the file step.
//
// SESSION_SECRET is not checked here because only the serve command needs
// it; call ValidateSession before starting the HTTP server.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ValidateSession checks the signing secret for session cookies.
func (c *Config) ValidateSession() error {
	if c.SessionSecret == "" {
		return errors.New("config: SESSION_SECRET is required (generate one with: openssl rand -hex 32)")
	}
	if len(c.SessionSecret) < auth.MinSecretLength {
		return fmt.Errorf("config: SESSION_SECRET must be at least %d bytes", auth.MinSecretLength)
	}
	return nil
}
