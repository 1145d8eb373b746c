// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the /api/health payload.
type HealthStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Uptime     float64           `json:"uptime_seconds"`
	Layers     int               `json:"layers"`
	Projects   int               `json:"projects"`
	Keys       int               `json:"keys"`
	Connectors map[string]string `json:"connectors"`
	Checks     map[string]string `json:"checks,omitempty"`
}

// Health reports directory sizes, registered connectors and dependency
// checks. Any failing check makes the status "degraded" and the response 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Seconds(),
		Layers:     len(h.manager.Layers()),
		Projects:   len(h.manager.Projects()),
		Keys:       len(h.manager.Keys()),
		Connectors: make(map[string]string),
	}
	for _, c := range h.manager.Registry().All() {
		status.Connectors[c.ID()] = c.Role().String()
	}

	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	if len(checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		status.Checks = make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				status.Checks[c.Name] = err.Error()
				status.Status = "degraded"
				continue
			}
			status.Checks[c.Name] = "ok"
		}
	}

	if status.Status != "healthy" {
		respondJSONStatus(w, http.StatusServiceUnavailable, start, status)
		return
	}
	respondData(w, start, status)
}
