// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, server, jobs) via constructors.
  - Zero Hidden State: No global variables are used to store config.

Runtime-tunable values (scan intervals, batch windows, worker counts) live in
the settings store, not here. Environment variables cover only what must be
known before the database is open.
*/
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/nhatvu/inkwell/internal/platform/constants"
)

// # Configuration Schema

// Config holds all process-level configuration for the Inkwell API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// DataDir is the storage root. database/, cache/, cover/, avatars/,
	// backup/ and logs/ are created beneath it.
	DataDir string `env:"INKWELL_DATA_DIR" envDefault:"./data"`

	// DatabaseURL overrides the default SQLite file path
	// (<DataDir>/database/inkwell.db) when set.
	DatabaseURL string `env:"DATABASE_URL"`

	// SecretKey signs access tokens. Required.
	SecretKey string `env:"SECRET_KEY,required"`

	// AccessTokenTTLMinutes is the lifetime of issued access tokens.
	AccessTokenTTLMinutes int `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"1440"`

	// BaseURL is an optional path prefix when serving behind a reverse proxy.
	BaseURL string `env:"BASE_URL" envDefault:""`

	// TrustedProxies is a comma-separated list of proxy addresses whose
	// X-Forwarded-For headers are honoured.
	TrustedProxies string `env:"TRUSTED_PROXIES" envDefault:""`

	// UnrarPath optionally points at an unrar binary for archives the pure-Go
	// decoder cannot open. Informational; decoding falls back to it only when set.
	UnrarPath string `env:"UNRAR_PATH" envDefault:""`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// DatabasePath returns the SQLite file path, honouring the DATABASE_URL override.
func (c *Config) DatabasePath() string {
	if c.DatabaseURL != "" {
		return strings.TrimPrefix(c.DatabaseURL, "sqlite://")
	}
	return filepath.Join(c.DataDir, constants.DirDatabase, constants.DatabaseFileName)
}

// LockFilePath returns the process-coordinator lock file path.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.DataDir, constants.LockFileName)
}

// Dir returns the absolute path of a well-known storage subdirectory.
func (c *Config) Dir(name string) string {
	return filepath.Join(c.DataDir, name)
}

// TrustedProxyList splits the TrustedProxies value into individual addresses.
func (c *Config) TrustedProxyList() []string {
	if c.TrustedProxies == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
