// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/layersync/internal/auth"
	"github.com/tomtom215/layersync/internal/manager"
	"github.com/tomtom215/layersync/internal/models"
)

// SourceAPI is the Meta.Source of changes made through the REST API.
const SourceAPI = "api"

// DefaultTimeout bounds how long a handler waits for a manager callback.
const DefaultTimeout = 30 * time.Second

// WebSocketServer attaches an upgraded connection for an authenticated user.
type WebSocketServer interface {
	ServeClient(w http.ResponseWriter, r *http.Request, user string)
}

// HealthCheck is one dependency probed by /api/health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HandlerConfig configures the handlers.
type HandlerConfig struct {
	Timeout time.Duration
	Version string
}

// Handler holds the dependencies of every API handler.
type Handler struct {
	manager   *manager.Manager
	ws        WebSocketServer
	timeout   time.Duration
	version   string
	startTime time.Time

	mu     sync.RWMutex
	checks []HealthCheck
}

// NewHandler creates the handlers. ws may be nil when the WebSocket
// connector is disabled.
func NewHandler(m *manager.Manager, ws WebSocketServer, cfg HandlerConfig) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Handler{
		manager:   m,
		ws:        ws,
		timeout:   cfg.Timeout,
		version:   cfg.Version,
		startTime: time.Now(),
	}
}

// AddHealthCheck registers a dependency probe for /api/health.
func (h *Handler) AddHealthCheck(name string, check func(ctx context.Context) error) {
	h.mu.Lock()
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
	h.mu.Unlock()
}

func requestMeta(r *http.Request) models.Meta {
	return models.Meta{Source: SourceAPI, User: auth.UserFromContext(r.Context())}
}

// dispatch runs one manager operation for the request and writes its result.
// data builds the success payload from the result; nil means no payload.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request,
	run func(ctx context.Context, meta models.Meta, cb models.Callback),
	data func(res *models.CallbackResult) any,
) {
	start := time.Now()
	meta := requestMeta(r)
	res, err := await(r.Context(), h.timeout, func(ctx context.Context, cb models.Callback) {
		run(ctx, meta, cb)
	})
	if err != nil {
		respondError(w, http.StatusGatewayTimeout, codeTimeout, err.Error(), nil)
		return
	}
	respondResult(w, start, res, func() any {
		if data == nil {
			return nil
		}
		return data(res)
	})
}

// WebSocket upgrades the request for the WebSocket connector.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ws == nil {
		respondError(w, http.StatusNotFound, codeBadRequest, "websocket connector disabled", nil)
		return
	}
	h.ws.ServeClient(w, r, auth.UserFromContext(r.Context()))
}
