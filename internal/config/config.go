// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr    string
	DBPath        string
	WebhookSecret string
	GitHubToken   string
	MaxPageSize   int
}

// HasGitHubToken returns true when a GitHub API token is configured. Used by
// the composition root to decide whether the sync endpoint is backed by a
// real client or disabled.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. CROSSBOW_WEBHOOK_SECRET is required: without it no delivery could
// ever be verified, so startup fails fast instead of rejecting every webhook
// at runtime. Optional variables with defaults: CROSSBOW_LISTEN_ADDR
// (127.0.0.1:8080), CROSSBOW_DB_PATH (crossbow.db), CROSSBOW_MAX_PAGE_SIZE
// (100). CROSSBOW_GITHUB_TOKEN is optional and only enables the sync API.
func Load() (*Config, error) {
	secret := os.Getenv("CROSSBOW_WEBHOOK_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("CROSSBOW_WEBHOOK_SECRET is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("CROSSBOW_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "crossbow.db"
	if v, ok := os.LookupEnv("CROSSBOW_DB_PATH"); ok {
		dbPath = v
	}

	maxPageSize := 100
	if v, ok := os.LookupEnv("CROSSBOW_MAX_PAGE_SIZE"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("CROSSBOW_MAX_PAGE_SIZE has invalid value %q: expected a positive integer", v)
		}
		maxPageSize = parsed
	}

	return &Config{
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		WebhookSecret: secret,
		GitHubToken:   os.Getenv("CROSSBOW_GITHUB_TOKEN"),
		MaxPageSize:   maxPageSize,
	}, nil
}
