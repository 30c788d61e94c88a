// Package config loads service configuration from the environment. A local
// .env file is honored in development; production reads the real environment
// only.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the auth service.
type Config struct {
	Env string `env:"APP_ENV" envDefault:"development"`

	HTTP struct {
		Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"20s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
		MaxBodyBytes    int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	}

	DB struct {
		DSN             string        `env:"DATABASE_URL"`
		MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
		MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Auth struct {
		SigningSecret string        `env:"AUTH_SIGNING_SECRET"`
		Issuer        string        `env:"AUTH_ISSUER" envDefault:"bridgelayer"`
		AccessTTL     time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"15m"`
		RefreshTTL    time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"168h"`
		CookieDomain  string        `env:"AUTH_COOKIE_DOMAIN"`
	}

	OAuth struct {
		GoogleClientID     string `env:"OAUTH_GOOGLE_CLIENT_ID"`
		GoogleClientSecret string `env:"OAUTH_GOOGLE_CLIENT_SECRET"`
		GoogleRedirectURL  string `env:"OAUTH_GOOGLE_REDIRECT_URL"`
		GoogleDiscoveryURL string `env:"OAUTH_GOOGLE_DISCOVERY_URL" envDefault:"https://accounts.google.com"`
	}

	RateLimit struct {
		LoginPerSecond float64 `env:"RATE_LIMIT_LOGIN_RPS" envDefault:"5"`
		LoginBurst     int     `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"10"`
	}
}

// Load reads configuration from the environment and validates it. A .env file
// in the working directory is merged in first when present; a missing file is
// not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Sanitize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production hardening
// (secure cookies, strict same-site).
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Sanitize validates cross-field constraints that struct tags cannot express.
func (c *Config) Sanitize() error {
	if len(c.Auth.SigningSecret) < 32 {
		return errors.New("config: AUTH_SIGNING_SECRET must be at least 32 bytes")
	}
	if c.DB.DSN == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return errors.New("config: AUTH_ACCESS_TTL must be shorter than AUTH_REFRESH_TTL")
	}
	if c.OAuth.GoogleClientID != "" && c.OAuth.GoogleDiscoveryURL == "" {
		return errors.New("config: OAUTH_GOOGLE_DISCOVERY_URL is required when Google OAuth is enabled")
	}
	return nil
}

// GoogleEnabled reports whether the Google OIDC provider should be wired.
func (c *Config) GoogleEnabled() bool { return c.OAuth.GoogleClientID != "" }
