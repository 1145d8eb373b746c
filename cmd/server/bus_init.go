// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/layersync/internal/bus"
	"github.com/tomtom215/layersync/internal/config"
	"github.com/tomtom215/layersync/internal/logging"
)

// BusComponents holds the message bus connector and, when configured, the
// embedded NATS server it connects to.
type BusComponents struct {
	Connector *bus.Connector
	server    *bus.EmbeddedServer
}

// initBus starts the embedded NATS server if requested, connects the
// watermill publisher and subscriber and creates the bus connector.
func initBus(cfg config.NATSConfig) (*BusComponents, error) {
	comps := &BusComponents{}
	url := cfg.URL

	if cfg.EmbeddedServer {
		srv, err := bus.NewEmbeddedServer(bus.ServerConfig{Host: cfg.Host, Port: cfg.Port})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		comps.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	natsCfg := bus.DefaultNATSConfig(url)
	natsCfg.MaxReconnects = cfg.MaxReconnects
	if cfg.ReconnectWait > 0 {
		natsCfg.ReconnectWait = cfg.ReconnectWait
	}

	logger := watermill.NewSlogLogger(logging.NewComponentSlogLogger("bus"))
	pub, sub, err := bus.NewNATSPubSub(natsCfg, logger)
	if err != nil {
		comps.shutdownServer()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	busCfg := bus.DefaultConfig()
	if cfg.Prefix != "" {
		busCfg.Prefix = cfg.Prefix
	}
	if cfg.Codec != "" {
		busCfg.Codec = cfg.Codec
	}
	busCfg.Origin = cfg.Origin
	if cfg.BreakerThreshold > 0 {
		busCfg.Breaker.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerTimeout > 0 {
		busCfg.Breaker.Timeout = cfg.BreakerTimeout
	}

	c, err := bus.New(pub, sub, busCfg)
	if err != nil {
		_ = pub.Close()
		_ = sub.Close()
		comps.shutdownServer()
		return nil, err
	}
	comps.Connector = c

	logging.Info().
		Str("url", url).
		Str("codec", busCfg.Codec).
		Str("origin", c.Origin()).
		Msg("Message bus connector initialized")
	return comps, nil
}

// IsRunning reports whether the embedded server is running.
func (b *BusComponents) IsRunning() bool {
	return b != nil && b.server != nil && b.server.IsRunning()
}

// Close closes the connector, then stops the embedded server.
func (b *BusComponents) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	if b.Connector != nil {
		if err := b.Connector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus connector: %w", err))
		}
	}
	if err := b.shutdownServer(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *BusComponents) shutdownServer() error {
	if b.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown embedded NATS server: %w", err)
	}
	b.server = nil
	return nil
}
