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
	"github.com/tomtom215/layersync/internal/validation"
)

// Layers lists the layer directory.
func (h *Handler) Layers(w http.ResponseWriter, _ *http.Request) {
	respondData(w, time.Now(), h.manager.Layers())
}

// AddLayer creates a layer from the body.
func (h *Handler) AddLayer(w http.ResponseWriter, r *http.Request) {
	var l models.Layer
	if !decodeBody(w, r, &l) {
		return
	}
	if l.ID != "" && !validID(w, l.ID) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.AddLayer(ctx, &l, meta, cb)
	}, func(*models.CallbackResult) any {
		return h.layerDefinition(&l)
	})
}

func (h *Handler) layerDefinition(l *models.Layer) *models.LayerDefinition {
	if def := h.manager.FindLayer(l.ID); def != nil {
		return def
	}
	return l.Definition()
}

// GetLayer returns a layer with its features.
func (h *Handler) GetLayer(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.GetLayer(ctx, layerID, meta, cb)
	}, func(res *models.CallbackResult) any {
		return res.Layer
	})
}

// UpdateLayer replaces a layer's metadata, and its features when the body
// carries any. The path id wins over the body id.
func (h *Handler) UpdateLayer(w http.ResponseWriter, r *http.Request) {
	var l models.Layer
	if !decodeBody(w, r, &l) {
		return
	}
	l.ID = chi.URLParam(r, "layerId")
	if !validID(w, l.ID) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.UpdateLayer(ctx, &l, meta, cb)
	}, func(*models.CallbackResult) any {
		return h.layerDefinition(&l)
	})
}

// DeleteLayer removes a layer.
func (h *Handler) DeleteLayer(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.DeleteLayer(ctx, layerID, meta, cb)
	}, nil)
}

func featuresOf(res *models.CallbackResult) any {
	if res.Features == nil {
		return []*models.Feature{}
	}
	return res.Features
}

// BBox returns the features inside a bounding box.
func (h *Handler) BBox(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerId")
	v, bad := floatParams(r, "swlng", "swlat", "nelng", "nelat")
	if bad != "" {
		respondError(w, http.StatusBadRequest, codeValidation, bad+" must be a number", map[string]any{"field": bad})
		return
	}
	q := bboxQuery{SouthWest: v[0:2], NorthEast: v[2:4]}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondValidation(w, verr)
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.GetBBox(ctx, layerID, q.SouthWest, q.NorthEast, meta, cb)
	}, featuresOf)
}

// Sphere returns the features within a distance in meters of a point.
func (h *Handler) Sphere(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerId")
	v, bad := floatParams(r, "lng", "lat", "distance")
	if bad != "" {
		respondError(w, http.StatusBadRequest, codeValidation, bad+" must be a number", map[string]any{"field": bad})
		return
	}
	q := sphereQuery{Lng: v[0], Lat: v[1], Distance: v[2]}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondValidation(w, verr)
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.GetSphere(ctx, layerID, q.Distance, q.Lng, q.Lat, meta, cb)
	}, featuresOf)
}

// Within returns the features inside the polygon feature in the body.
func (h *Handler) Within(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerId")
	var polygon models.Feature
	if !decodeBody(w, r, &polygon) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.GetWithinPolygon(ctx, layerID, &polygon, meta, cb)
	}, featuresOf)
}
