// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package services

import (
	"context"
)

// Server is a component with a blocking, context aware run loop.
// *websocket.Connector and *bus.Connector satisfy it.
type Server interface {
	Serve(ctx context.Context) error
}

// ServeService gives a Server a name for supervisor logs.
type ServeService struct {
	server Server
	name   string
}

// NewServeService wraps server under name.
func NewServeService(name string, server Server) *ServeService {
	return &ServeService{server: server, name: name}
}

// Serve implements suture.Service.
func (s *ServeService) Serve(ctx context.Context) error {
	return s.server.Serve(ctx)
}

// String implements fmt.Stringer.
func (s *ServeService) String() string {
	return s.name
}
