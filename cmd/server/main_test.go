// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package main

import (
	"context"
	"io"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tomtom215/layersync/internal/auth"
	"github.com/tomtom215/layersync/internal/config"
	"github.com/tomtom215/layersync/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const testSecret = "0123456789abcdef0123456789abcdef"

func TestOpenStorages(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Storage.File = config.FileStorageConfig{Enabled: true, Dir: filepath.Join(dir, "files"), WriteDelay: time.Hour}
	cfg.Storage.Badger = config.BadgerStorageConfig{Enabled: true, InMemory: true}
	cfg.Storage.DuckDB = config.DuckDBStorageConfig{Enabled: true}
	cfg.Storage.Redis = config.RedisStorageConfig{Enabled: true, Addr: mr.Addr(), Prefix: "test:"}

	set, err := openStorages(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStorages: %v", err)
	}
	t.Cleanup(func() {
		if err := set.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	want := []string{config.StorageMemory, config.StorageFile, config.StorageBadger, config.StorageDuckDB, config.StorageRedis}
	if got := set.IDs(); !slices.Equal(got, want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}

	for _, e := range set.entries {
		if e.ping == nil {
			continue
		}
		if err := e.ping(context.Background()); err != nil {
			t.Errorf("%s ping: %v", e.id, err)
		}
	}
}

func TestOpenStoragesFailureClosesOpened(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Badger = config.BadgerStorageConfig{Enabled: true, InMemory: true}
	cfg.Storage.Redis = config.RedisStorageConfig{Enabled: true, Addr: "127.0.0.1:1"}

	if _, err := openStorages(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestBuildAuth(t *testing.T) {
	tests := []struct {
		name     string
		sec      config.SecurityConfig
		wantMode auth.Mode
		wantErr  bool
	}{
		{name: "none", sec: config.SecurityConfig{AuthMode: "none"}, wantMode: auth.ModeNone},
		{name: "empty means none", sec: config.SecurityConfig{}, wantMode: auth.ModeNone},
		{
			name:     "jwt",
			sec:      config.SecurityConfig{AuthMode: "jwt", JWTSecret: testSecret, SessionTimeout: time.Hour},
			wantMode: auth.ModeJWT,
		},
		{name: "jwt short secret", sec: config.SecurityConfig{AuthMode: "jwt", JWTSecret: "short"}, wantErr: true},
		{
			name:     "basic",
			sec:      config.SecurityConfig{AuthMode: "basic", AdminUsername: "admin", AdminPassword: "secret-password"},
			wantMode: auth.ModeBasic,
		},
		{name: "unknown", sec: config.SecurityConfig{AuthMode: "oauth"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := buildAuth(tt.sec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildAuth: %v", err)
			}
			if mw.Mode() != tt.wantMode {
				t.Errorf("Mode() = %q, want %q", mw.Mode(), tt.wantMode)
			}
		})
	}
}

func TestChiConfig(t *testing.T) {
	c := chiConfig(config.SecurityConfig{
		CORSOrigins:       []string{"https://maps.example.com"},
		RateLimitReqs:     10,
		RateLimitWindow:   time.Second,
		RateLimitDisabled: true,
	})
	if !slices.Equal(c.CORSAllowedOrigins, []string{"https://maps.example.com"}) {
		t.Errorf("CORSAllowedOrigins = %v", c.CORSAllowedOrigins)
	}
	if c.RateLimitRequests != 10 || c.RateLimitWindow != time.Second || !c.RateLimitDisabled {
		t.Errorf("rate limit = %d/%s disabled=%v", c.RateLimitRequests, c.RateLimitWindow, c.RateLimitDisabled)
	}

	defaults := chiConfig(config.SecurityConfig{})
	if defaults.RateLimitRequests != 100 || defaults.RateLimitWindow != time.Minute {
		t.Errorf("defaults = %d/%s", defaults.RateLimitRequests, defaults.RateLimitWindow)
	}
}

func TestInitBusEmbedded(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	comps, err := initBus(config.NATSConfig{
		Enabled:        true,
		EmbeddedServer: true,
		Host:           "127.0.0.1",
		Port:           -1,
		Codec:          "msgpack",
		Origin:         "node-a",
		MaxReconnects:  -1,
	})
	if err != nil {
		t.Fatalf("initBus: %v", err)
	}
	if !comps.IsRunning() {
		t.Fatal("embedded server not running")
	}
	if comps.Connector.Origin() != "node-a" {
		t.Errorf("Origin() = %q", comps.Connector.Origin())
	}
	if err := comps.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if comps.IsRunning() {
		t.Error("server still running after Close")
	}
}

func TestInitBusBadCodec(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	_, err := initBus(config.NATSConfig{
		EmbeddedServer: true,
		Host:           "127.0.0.1",
		Port:           -1,
		Codec:          "xml",
	})
	if err == nil {
		t.Fatal("expected codec error")
	}
}

func TestBusComponentsNil(t *testing.T) {
	var b *BusComponents
	if b.IsRunning() {
		t.Error("nil components reported running")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}
