// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/layersync/internal/api"
	"github.com/tomtom215/layersync/internal/auth"
	"github.com/tomtom215/layersync/internal/authz"
	"github.com/tomtom215/layersync/internal/config"
	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/manager"
	"github.com/tomtom215/layersync/internal/middleware"
	"github.com/tomtom215/layersync/internal/supervisor"
	"github.com/tomtom215/layersync/internal/supervisor/services"
	ws "github.com/tomtom215/layersync/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Connector ids of the interface connectors.
const (
	websocketID = "websocket"
	busID       = "bus"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	tokenUser := flag.String("token", "", "print a JWT for this user and exit")
	tokenRole := flag.String("role", "admin", "role claim of the token printed by -token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if *tokenUser != "" {
		if err := printToken(cfg, *tokenUser, *tokenRole); err != nil {
			logging.Fatal().Err(err).Msg("Failed to generate token")
		}
		return
	}

	logging.Info().
		Str("data_dir", cfg.Data.Dir).
		Str("default_storage", cfg.Data.DefaultStorage).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Starting Layersync with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := manager.New(manager.Config{
		DataDir:        cfg.Data.Dir,
		LayersFile:     cfg.Data.LayersFile,
		ProjectsFile:   cfg.Data.ProjectsFile,
		ResourceDir:    cfg.Data.ResourceDir,
		DefaultStorage: cfg.Data.DefaultStorage,
		KeyStorage:     cfg.Data.KeyStorage,
		SaveDelay:      cfg.Data.SaveDelay,
	})
	if err := m.Init(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to load layer and project directories")
	}
	logging.Info().
		Int("layers", len(m.Layers())).
		Int("projects", len(m.Projects())).
		Msg("Directories loaded")

	storages, err := openStorages(ctx, cfg)
	if err != nil {
		m.Close()
		logging.Fatal().Err(err).Msg("Failed to open storage connectors")
	}
	for _, e := range storages.entries {
		if err := m.AddConnector(e.id, e.conn, e.opts); err != nil {
			m.Close()
			_ = storages.Close()
			logging.Fatal().Err(err).Str("storage", e.id).Msg("Failed to register storage connector")
		}
	}
	m.SyncKeys(ctx)
	logging.Info().
		Strs("storages", storages.IDs()).
		Int("keys", len(m.Keys())).
		Msg("Storage connectors registered")

	var wsConn *ws.Connector
	if cfg.WebSocket.Enabled {
		wsConn = ws.New(ws.Config{
			ReceiveCopy:    cfg.WebSocket.ReceiveCopy,
			AllowedOrigins: cfg.Security.CORSOrigins,
			Hub: ws.HubConfig{
				RatePerSecond: cfg.WebSocket.RatePerSecond,
				Burst:         cfg.WebSocket.Burst,
			},
		})
		opts := connector.Options{"receiveCopy": cfg.WebSocket.ReceiveCopy}
		if err := m.AddConnector(websocketID, wsConn, opts); err != nil {
			logging.Fatal().Err(err).Msg("Failed to register WebSocket connector")
		}
		logging.Info().Bool("receive_copy", cfg.WebSocket.ReceiveCopy).Msg("WebSocket connector registered")
	}

	var busComps *BusComponents
	if cfg.NATS.Enabled {
		busComps, err = initBus(cfg.NATS)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize message bus")
		}
		if err := m.AddConnector(busID, busComps.Connector, nil); err != nil {
			logging.Fatal().Err(err).Msg("Failed to register bus connector")
		}
	}

	authMW, err := buildAuth(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure authentication")
	}

	var wsServer api.WebSocketServer
	if wsConn != nil {
		wsServer = wsConn
	}
	handler := api.NewHandler(m, wsServer, api.HandlerConfig{
		Timeout: cfg.Server.Timeout,
		Version: version,
	})
	for _, e := range storages.entries {
		if e.ping != nil {
			handler.AddHealthCheck(e.id, e.ping)
		}
	}
	if busComps != nil {
		c := busComps.Connector
		handler.AddHealthCheck(busID, func(context.Context) error {
			if state := c.BreakerState(); state == gobreaker.StateOpen {
				return fmt.Errorf("publish circuit breaker %s", state)
			}
			return nil
		})
	}

	router := api.NewRouter(handler, authMW, chiConfig(cfg.Security))
	if cfg.Security.AuthzEnabled {
		enforcer, err := authz.NewEnforcer(authz.Config{
			PolicyPath:  cfg.Security.AuthzPolicyPath,
			DefaultRole: cfg.Security.AuthzDefaultRole,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create authorization enforcer")
		}
		router.WithAuthz(authz.NewMiddleware(enforcer))
		logging.Info().Str("policy", cfg.Security.AuthzPolicyPath).Msg("Role authorization enabled")
	}
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 0, // key event streams stay open
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Flush directories before storages close.
	tree.AddDataService(services.NewShutdownService("directories", func() error {
		m.Close()
		return nil
	}, storages.Close))

	if wsConn != nil {
		tree.AddMessagingService(services.NewServeService("websocket-hub", wsConn))
	}
	if busComps != nil {
		tree.AddMessagingService(services.NewServeService("message-bus", busComps.Connector))
		tree.AddMessagingService(services.NewShutdownService("message-bus-close", busComps.Close))
	}

	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// buildAuth creates the authentication middleware for the configured mode.
func buildAuth(sec config.SecurityConfig) (*auth.Middleware, error) {
	mode, err := auth.ParseMode(sec.AuthMode)
	if err != nil {
		return nil, err
	}

	var jwtManager *auth.JWTManager
	var basicManager *auth.BasicAuthManager
	switch mode {
	case auth.ModeJWT:
		jwtManager, err = auth.NewJWTManager(sec.JWTSecret, sec.SessionTimeout)
		if err != nil {
			return nil, err
		}
	case auth.ModeBasic:
		basicManager, err = auth.NewBasicAuthManager(sec.AdminUsername, sec.AdminPassword)
		if err != nil {
			return nil, err
		}
	}
	logging.Info().Str("mode", string(mode)).Msg("Authentication configured")
	return auth.NewMiddleware(mode, jwtManager, basicManager), nil
}

// chiConfig maps security settings onto the CORS and rate limit middleware.
func chiConfig(sec config.SecurityConfig) *middleware.ChiConfig {
	c := middleware.DefaultChiConfig()
	if len(sec.CORSOrigins) > 0 {
		c.CORSAllowedOrigins = sec.CORSOrigins
	}
	if sec.RateLimitReqs > 0 {
		c.RateLimitRequests = sec.RateLimitReqs
	}
	if sec.RateLimitWindow > 0 {
		c.RateLimitWindow = sec.RateLimitWindow
	}
	c.RateLimitDisabled = sec.RateLimitDisabled
	return c
}

// printToken writes a signed JWT for user to stdout.
func printToken(cfg *config.Config, user, role string) error {
	jwtManager, err := auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.SessionTimeout)
	if err != nil {
		return err
	}
	token, err := jwtManager.GenerateToken(user, role)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, token)
	return err
}
