package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                   int      `env:"PORT" envDefault:"8080"`
	DatabaseURL            string   `env:"DATABASE_URL,required"`
	RedisURL               string   `env:"REDIS_URL,required"`
	SessionSecret          string   `env:"SESSION_SECRET" envDefault:"dev-secret-change-me"`
	AdminPasswordHash      string   `env:"ADMIN_PASSWORD_HASH"`
	AdminSessionTTLMinutes int      `env:"ADMIN_SESSION_TTL_MINUTES" envDefault:"720"`
	SessionIdleMinutes     int      `env:"SESSION_IDLE_MINUTES" envDefault:"60"`
	CodeAttemptsPerMinute  int      `env:"CODE_ATTEMPTS_PER_MINUTE" envDefault:"10"`
	AssetHosts             []string `env:"ASSET_HOSTS" envSeparator:"," envDefault:"firebasestorage.googleapis.com,f004.backblazeb2.com"`
	StaticDir              string   `env:"STATIC_DIR" envDefault:"static/picker"`
	AdminStaticDir         string   `env:"ADMIN_STATIC_DIR" envDefault:"static/admin"`
	AutoMigrate            bool     `env:"AUTO_MIGRATE" envDefault:"false"`
	LogLevel               string   `env:"LOG_LEVEL" envDefault:"info"`
	Environment            string   `env:"APP_ENV" envDefault:"development"`
}

// IsProduction turns on secure cookies, HSTS and strict secret checks.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) AdminSessionTTL() time.Duration {
	return time.Duration(c.AdminSessionTTLMinutes) * time.Minute
}

func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if c.SessionIdleMinutes <= 0 {
		return fmt.Errorf("SESSION_IDLE_MINUTES must be positive")
	}
	if c.CodeAttemptsPerMinute <= 0 {
		return fmt.Errorf("CODE_ATTEMPTS_PER_MINUTE must be positive")
	}

	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}

		if c.AdminPasswordHash == "" {
			log.Warn().Msg("ADMIN_PASSWORD_HASH is empty in production: admin view disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.AutoMigrate {
			log.Warn().Msg("AUTO_MIGRATE is enabled in production")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
