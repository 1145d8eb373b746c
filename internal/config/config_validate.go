// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// minJWTSecretLength matches auth.MinSecretLength.
const minJWTSecretLength = 32

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateData,
		c.validateStorage,
		c.validateWebSocket,
		c.validateNATS,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateData() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("LAYERSYNC_DATA_DIR is required")
	}
	if c.Data.LayersFile == "" || c.Data.ProjectsFile == "" {
		return fmt.Errorf("layers and projects file names are required")
	}
	if c.Data.LayersFile == c.Data.ProjectsFile {
		return fmt.Errorf("layers and projects files must differ, both are %q", c.Data.LayersFile)
	}
	if c.Data.SaveDelay < 0 {
		return fmt.Errorf("LAYERSYNC_SAVE_DELAY must not be negative")
	}

	enabled := c.EnabledStorages()
	if !slices.Contains(enabled, c.Data.DefaultStorage) {
		return fmt.Errorf("LAYERSYNC_DEFAULT_STORAGE %q is not an enabled storage (enabled: %s)",
			c.Data.DefaultStorage, strings.Join(enabled, ", "))
	}
	if c.Data.KeyStorage != "" && !slices.Contains(enabled, c.Data.KeyStorage) {
		return fmt.Errorf("LAYERSYNC_KEY_STORAGE %q is not an enabled storage (enabled: %s)",
			c.Data.KeyStorage, strings.Join(enabled, ", "))
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.File.Enabled && c.Storage.File.WriteDelay < 0 {
		return fmt.Errorf("FILE_STORAGE_WRITE_DELAY must not be negative")
	}
	if c.Storage.Badger.Enabled && !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
		return fmt.Errorf("BADGER_PATH is required when BADGER_ENABLED=true")
	}
	if c.Storage.DuckDB.Enabled && c.Storage.DuckDB.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	if c.Storage.Redis.Enabled {
		if c.Storage.Redis.URL == "" && c.Storage.Redis.Addr == "" {
			return fmt.Errorf("REDIS_URL or REDIS_ADDR is required when REDIS_ENABLED=true")
		}
		if c.Storage.Redis.URL != "" {
			if err := validateRedisURL(c.Storage.Redis.URL); err != nil {
				return fmt.Errorf("REDIS_URL is invalid: %w", err)
			}
		}
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if !c.WebSocket.Enabled {
		return nil
	}
	if c.WebSocket.RatePerSecond < 0 {
		return fmt.Errorf("WEBSOCKET_RATE must not be negative")
	}
	if c.WebSocket.RatePerSecond > 0 && c.WebSocket.Burst < 1 {
		return fmt.Errorf("WEBSOCKET_BURST must be at least 1 when a rate is set")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.Port < -1 || c.NATS.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between -1 and 65535")
		}
	} else if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	switch c.NATS.Codec {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("NATS_CODEC must be json or msgpack, got %q", c.NATS.Codec)
	}
	if c.NATS.Prefix == "" {
		return fmt.Errorf("NATS_PREFIX is required when NATS_ENABLED=true")
	}
	if c.NATS.BreakerThreshold < 1 {
		return fmt.Errorf("NATS_BREAKER_THRESHOLD must be at least 1")
	}
	return nil
}

// Rate limit bounds.
const (
	minRateLimitReqs   = 1
	maxRateLimitReqs   = 100000
	minRateLimitWindow = time.Second
	maxRateLimitWindow = time.Hour
)

func (c *Config) validateSecurity() error {
	s := c.Security
	switch s.AuthMode {
	case "none":
	case "jwt":
		if len(s.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
		}
	case "basic":
		if s.AdminUsername == "" || s.AdminPassword == "" {
			return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required when AUTH_MODE=basic")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be none, jwt or basic, got %q", s.AuthMode)
	}

	if s.AuthzEnabled && s.AuthMode == "none" {
		return fmt.Errorf("AUTHZ_ENABLED requires AUTH_MODE=jwt or basic")
	}

	for _, origin := range s.CORSOrigins {
		if origin == "*" && len(s.CORSOrigins) > 1 {
			return fmt.Errorf("CORS_ORIGINS cannot mix '*' with explicit origins")
		}
	}

	if !s.RateLimitDisabled {
		if s.RateLimitReqs < minRateLimitReqs || s.RateLimitReqs > maxRateLimitReqs {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitReqs, maxRateLimitReqs)
		}
		if s.RateLimitWindow < minRateLimitWindow || s.RateLimitWindow > maxRateLimitWindow {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be trace, debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateNATSURL accepts nats, tls, ws and wss URLs with a host.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}
	return nil
}

// validateRedisURL accepts redis and rediss URLs with a host.
func validateRedisURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
		return fmt.Errorf("scheme must be redis or rediss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:6379)")
	}
	return nil
}
