// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/layersync/internal/models"
)

// Resources lists the resource catalog ids.
func (h *Handler) Resources(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ids, err := h.manager.ResourceIDs(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, start, ids)
}

// GetResource returns one resource file.
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rf, err := h.manager.GetResource(r.Context(), chi.URLParam(r, "resourceId"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, start, rf)
}

// UpdateResource replaces or creates a resource file.
func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "resourceId")
	if !validID(w, id) {
		return
	}
	var rf models.ResourceFile
	if !decodeBody(w, r, &rf) {
		return
	}
	if err := h.manager.UpdateResource(r.Context(), id, &rf); err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, start, &rf)
}
