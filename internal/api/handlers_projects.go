// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/layersync/internal/models"
)

// Projects lists the project directory.
func (h *Handler) Projects(w http.ResponseWriter, _ *http.Request) {
	respondData(w, time.Now(), h.manager.Projects())
}

// AddProject creates a project from the body.
func (h *Handler) AddProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if !decodeBody(w, r, &p) {
		return
	}
	if p.ID != "" && !validID(w, p.ID) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.AddProject(ctx, &p, meta, cb)
	}, func(*models.CallbackResult) any {
		if found := h.manager.FindProject(p.ID); found != nil {
			return found
		}
		return p.Definition()
	})
}

// NewProject creates a connected project with a generated id.
func (h *Handler) NewProject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := h.manager.GetNewProject(r.Context(), r.URL.Query().Get("title"), requestMeta(r))
	respondData(w, start, map[string]string{"id": id})
}

// DeleteProject removes a project.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.DeleteProject(ctx, projectID, meta, cb)
	}, nil)
}
