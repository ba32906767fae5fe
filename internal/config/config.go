// Package config holds environment-driven configuration for the avatarctl
// harness. The SDK itself is configured through client options; this package
// only serves the CLI entrypoint.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the avatarctl harness.
type Config struct {
	// Service settings
	ServiceName string `env:"SERVICE_NAME" envDefault:"avatarctl"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Platform API
	APIKey     string `env:"AVATAR_API_KEY"`
	APIBaseURL string `env:"AVATAR_API_BASE_URL" envDefault:"https://api.avatarlink.io"`

	// Session
	AvatarID        string        `env:"AVATAR_ID"`
	SessionID       string        `env:"SESSION_ID"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"15s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("AVATAR_API_KEY is required")
	}
	if strings.TrimSpace(cfg.AvatarID) == "" && strings.TrimSpace(cfg.SessionID) == "" {
		return nil, fmt.Errorf("AVATAR_ID or SESSION_ID is required")
	}

	return cfg, nil
}
