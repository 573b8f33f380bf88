// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

type Config struct {
	Port         int    `env:"PORT" envDefault:"3318"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`

	// Secrets
	AdminKey  string `env:"ADMIN_KEY"`
	TokenSalt string `env:"TOKEN_SALT"`

	// Catalog service
	MusicBrainzURL        string        `env:"MUSICBRAINZ_URL" envDefault:"http://musicbrainz.org/ws/1"`
	MusicBrainzTimeout    time.Duration `env:"MUSICBRAINZ_TIMEOUT" envDefault:"10s"`
	MusicBrainzRetryDelay time.Duration `env:"MUSICBRAINZ_RETRY_DELAY" envDefault:"1s"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// ParseFlags reads the environment, then lets flags override it
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := pflag.NewFlagSet("chugchanga", pflag.ContinueOnError)

	// Environment values become the flag defaults
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")
	fs.StringVarP(&cfg.DatabaseURL, "database-url", "d", cfg.DatabaseURL, "Database URL")
	fs.StringVarP(&cfg.DatabaseType, "database-type", "t", cfg.DatabaseType, "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKey, "admin-key", cfg.AdminKey, "Admin key (prefer env)")
	fs.StringVar(&cfg.TokenSalt, "token-salt", cfg.TokenSalt, "Member token salt (prefer env)")

	fs.StringVar(&cfg.MusicBrainzURL, "musicbrainz-url", cfg.MusicBrainzURL, "MusicBrainz web service base URL")
	fs.DurationVar(&cfg.MusicBrainzTimeout, "musicbrainz-timeout", cfg.MusicBrainzTimeout, "Deadline for one MusicBrainz call")
	fs.DurationVar(&cfg.MusicBrainzRetryDelay, "musicbrainz-retry-delay", cfg.MusicBrainzRetryDelay, "Delay before retrying a MusicBrainz call")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text or json)")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP trace endpoint")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, errors.New("invalid port")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if cfg.DatabaseType != DatabaseSQLite && cfg.DatabaseType != DatabasePostgres {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.AdminKey == "" {
		return Config{}, errors.New("ADMIN_KEY required")
	}
	if cfg.TokenSalt == "" {
		return Config{}, errors.New("TOKEN_SALT required")
	}

	if cfg.MusicBrainzTimeout <= 0 {
		return Config{}, errors.New("musicbrainz timeout must be positive")
	}
	if cfg.MusicBrainzRetryDelay < 0 {
		return Config{}, errors.New("musicbrainz retry delay cannot be negative")
	}

	return cfg, nil
}
