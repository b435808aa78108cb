// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated from environment variables via envconfig. An env
// file loaded earlier in main feeds the same variables in development.
type Config struct {
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://localhost:5173"`
	StoreName     string `envconfig:"STORE_NAME" default:"DukaanPOS"`

	AuthSecret    string        `envconfig:"AUTH_SECRET" required:"true"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"8h"`
	AdminUsername string        `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD" required:"true"`

	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads the environment and applies the security checks.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validateSecurity(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateSecurity refuses configurations that would undermine auth.
func (c Config) validateSecurity() error {
	if len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters, got %d", len(c.AuthSecret))
	}
	if len(c.AdminPassword) < 10 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 10 characters")
	}
	lowered := strings.ToLower(c.AdminPassword)
	for _, weak := range []string{"password", "admin12345", "1234567890", "qwertyuiop"} {
		if lowered == weak {
			return fmt.Errorf("ADMIN_PASSWORD is too common")
		}
	}
	return nil
}
