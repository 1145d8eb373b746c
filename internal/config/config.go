// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package config

import (
	"fmt"
	"time"
)

// Storage connector ids. The memory connector is always registered.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageBadger = "badger"
	StorageDuckDB = "duckdb"
	StorageRedis  = "redis"
)

// Config holds the complete server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Data      DataConfig      `koanf:"data"`
	Storage   StorageConfig   `koanf:"storage"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	NATS      NATSConfig      `koanf:"nats"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	// Timeout bounds how long a REST handler waits for a manager operation.
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataConfig holds the manager's directory and persistence settings.
type DataConfig struct {
	Dir          string `koanf:"dir"`
	LayersFile   string `koanf:"layers_file"`
	ProjectsFile string `koanf:"projects_file"`
	// ResourceDir defaults to <dir>/resourceTypes.
	ResourceDir string `koanf:"resource_dir"`
	// SaveDelay is the quiet period before directory files are written.
	SaveDelay      time.Duration `koanf:"save_delay"`
	DefaultStorage string        `koanf:"default_storage"`
	// KeyStorage holds new keys. Empty means DefaultStorage.
	KeyStorage string `koanf:"key_storage"`
}

// StorageConfig holds the optional storage connectors.
type StorageConfig struct {
	File   FileStorageConfig   `koanf:"file"`
	Badger BadgerStorageConfig `koanf:"badger"`
	DuckDB DuckDBStorageConfig `koanf:"duckdb"`
	Redis  RedisStorageConfig  `koanf:"redis"`
}

// FileStorageConfig configures the JSON file storage connector.
type FileStorageConfig struct {
	Enabled bool `koanf:"enabled"`
	// Dir defaults to <data.dir>/storage.
	Dir string `koanf:"dir"`
	// WriteDelay is the quiet period before a changed layer is written.
	WriteDelay time.Duration `koanf:"write_delay"`
}

// BadgerStorageConfig configures the BadgerDB storage connector.
type BadgerStorageConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Path        string `koanf:"path"`
	InMemory    bool   `koanf:"in_memory"`
	SyncWrites  bool   `koanf:"sync_writes"`
	Compression bool   `koanf:"compression"`
}

// DuckDBStorageConfig configures the DuckDB storage connector.
type DuckDBStorageConfig struct {
	Enabled bool `koanf:"enabled"`
	// Path empty opens an in-memory database.
	Path      string `koanf:"path"`
	Threads   int    `koanf:"threads"`
	MaxMemory string `koanf:"max_memory"`
}

// RedisStorageConfig configures the Redis key storage connector.
type RedisStorageConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// WebSocketConfig configures the WebSocket interface connector.
type WebSocketConfig struct {
	Enabled     bool `koanf:"enabled"`
	ReceiveCopy bool `koanf:"receive_copy"`
	// RatePerSecond limits frames per client. Zero disables the limit.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// NATSConfig configures the bus connector.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	// EmbeddedServer starts an in-process NATS server on Host:Port and
	// connects to it instead of URL.
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	Prefix         string `koanf:"prefix"`
	// Codec is json or msgpack.
	Codec string `koanf:"codec"`
	// Origin identifies this instance on the bus. Empty generates one.
	Origin           string        `koanf:"origin"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds authentication and HTTP protection settings.
type SecurityConfig struct {
	// AuthMode is none, jwt or basic.
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	// AuthzEnabled enforces role permissions on the REST API. Requires an
	// auth mode other than none.
	AuthzEnabled bool `koanf:"authz_enabled"`
	// AuthzPolicyPath is a Casbin policy CSV. Empty uses the built-in policy.
	AuthzPolicyPath string `koanf:"authz_policy_path"`
	// AuthzDefaultRole applies to tokens without a role claim.
	AuthzDefaultRole string `koanf:"authz_default_role"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EnabledStorages returns the ids of the storage connectors to register,
// memory first.
func (c *Config) EnabledStorages() []string {
	ids := []string{StorageMemory}
	if c.Storage.File.Enabled {
		ids = append(ids, StorageFile)
	}
	if c.Storage.Badger.Enabled {
		ids = append(ids, StorageBadger)
	}
	if c.Storage.DuckDB.Enabled {
		ids = append(ids, StorageDuckDB)
	}
	if c.Storage.Redis.Enabled {
		ids = append(ids, StorageRedis)
	}
	return ids
}
