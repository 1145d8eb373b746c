// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/layersync/config.yaml",
	"/etc/layersync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3002,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Data: DataConfig{
			Dir:            "data",
			LayersFile:     "layers.json",
			ProjectsFile:   "projects.json",
			SaveDelay:      5 * time.Second,
			DefaultStorage: StorageMemory,
		},
		Storage: StorageConfig{
			File: FileStorageConfig{
				WriteDelay: 2 * time.Second,
			},
			DuckDB: DuckDBStorageConfig{
				MaxMemory: "512MB",
			},
			Redis: RedisStorageConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "layersync",
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:       true,
			ReceiveCopy:   true,
			RatePerSecond: 50,
			Burst:         100,
		},
		NATS: NATSConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   false,
			Host:             "127.0.0.1",
			Port:             4222,
			Prefix:           "layersync",
			Codec:            "json",
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
			BreakerThreshold: 5,
			BreakerTimeout:   10 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        "none",
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{},

			AuthzDefaultRole: "viewer",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from defaults, the config file and the
// environment, in increasing priority, and validates it.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// LAYERSYNC_DATA_DIR -> data.dir and so on, see envTransformFunc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyDerived fills settings whose defaults depend on other settings.
func (c *Config) applyDerived() {
	if c.Storage.File.Dir == "" {
		c.Storage.File.Dir = c.Data.Dir + "/storage"
	}
	if c.Storage.Badger.Path == "" && !c.Storage.Badger.InMemory {
		c.Storage.Badger.Path = c.Data.Dir + "/badger"
	}
	if c.Data.KeyStorage == "" {
		c.Data.KeyStorage = c.Data.DefaultStorage
	}
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they come from
// the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Data
	"layersync_data_dir":        "data.dir",
	"layersync_layers_file":     "data.layers_file",
	"layersync_projects_file":   "data.projects_file",
	"layersync_resource_dir":    "data.resource_dir",
	"layersync_save_delay":      "data.save_delay",
	"layersync_default_storage": "data.default_storage",
	"layersync_key_storage":     "data.key_storage",

	// Storage connectors
	"file_storage_enabled":     "storage.file.enabled",
	"file_storage_dir":         "storage.file.dir",
	"file_storage_write_delay": "storage.file.write_delay",
	"badger_enabled":           "storage.badger.enabled",
	"badger_path":              "storage.badger.path",
	"badger_in_memory":         "storage.badger.in_memory",
	"badger_sync_writes":       "storage.badger.sync_writes",
	"badger_compression":       "storage.badger.compression",
	"duckdb_enabled":           "storage.duckdb.enabled",
	"duckdb_path":              "storage.duckdb.path",
	"duckdb_threads":           "storage.duckdb.threads",
	"duckdb_max_memory":        "storage.duckdb.max_memory",
	"redis_enabled":            "storage.redis.enabled",
	"redis_url":                "storage.redis.url",
	"redis_addr":               "storage.redis.addr",
	"redis_password":           "storage.redis.password",
	"redis_db":                 "storage.redis.db",
	"redis_prefix":             "storage.redis.prefix",

	// WebSocket
	"websocket_enabled":      "websocket.enabled",
	"websocket_receive_copy": "websocket.receive_copy",
	"websocket_rate":         "websocket.rate_per_second",
	"websocket_burst":        "websocket.burst",

	// NATS
	"nats_enabled":           "nats.enabled",
	"nats_url":               "nats.url",
	"nats_embedded":          "nats.embedded_server",
	"nats_host":              "nats.host",
	"nats_port":              "nats.port",
	"nats_prefix":            "nats.prefix",
	"nats_codec":             "nats.codec",
	"nats_origin":            "nats.origin",
	"nats_max_reconnects":    "nats.max_reconnects",
	"nats_reconnect_wait":    "nats.reconnect_wait",
	"nats_breaker_threshold": "nats.breaker_threshold",
	"nats_breaker_timeout":   "nats.breaker_timeout",

	// Security
	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"admin_username":      "security.admin_username",
	"admin_password":      "security.admin_password",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"authz_enabled":       "security.authz_enabled",
	"authz_policy_path":   "security.authz_policy_path",
	"authz_default_role":  "security.authz_default_role",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its config path, or
// "" to skip it.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - LAYERSYNC_DATA_DIR -> data.dir
//   - BADGER_ENABLED -> storage.badger.enabled
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
