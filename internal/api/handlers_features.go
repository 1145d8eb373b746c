// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/layersync/internal/models"
)

// AddFeature adds the feature in the body to a layer. A missing id is
// generated.
func (h *Handler) AddFeature(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerId")
	var f models.Feature
	if !decodeBody(w, r, &f) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.AddFeature(ctx, layerID, &f, meta, cb)
	}, func(*models.CallbackResult) any {
		return &f
	})
}

// GetFeature returns one feature.
func (h *Handler) GetFeature(w http.ResponseWriter, r *http.Request) {
	layerID, featureID := chi.URLParam(r, "layerId"), chi.URLParam(r, "featureId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.GetFeature(ctx, layerID, featureID, meta, cb)
	}, func(res *models.CallbackResult) any {
		return res.Feature
	})
}

// UpdateFeature replaces a feature. The path id wins over the body id.
func (h *Handler) UpdateFeature(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerId")
	var f models.Feature
	if !decodeBody(w, r, &f) {
		return
	}
	f.ID = chi.URLParam(r, "featureId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.UpdateFeature(ctx, layerID, &f, meta, cb)
	}, func(*models.CallbackResult) any {
		return &f
	})
}

// DeleteFeature removes a feature.
func (h *Handler) DeleteFeature(w http.ResponseWriter, r *http.Request) {
	layerID, featureID := chi.URLParam(r, "layerId"), chi.URLParam(r, "featureId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.DeleteFeature(ctx, layerID, featureID, meta, cb)
	}, nil)
}

// UpdateProperty sets one property of a feature.
func (h *Handler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	layerID, featureID := chi.URLParam(r, "layerId"), chi.URLParam(r, "featureId")
	property := chi.URLParam(r, "property")
	var req propertyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.UpdateProperty(ctx, layerID, featureID, property, req.Value, req.UseLog, meta, cb)
	}, nil)
}

// GetLog returns a feature's property logs.
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	layerID, featureID := chi.URLParam(r, "layerId"), chi.URLParam(r, "featureId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.GetLog(ctx, layerID, featureID, meta, cb)
	}, func(res *models.CallbackResult) any {
		if res.Logs == nil {
			return map[string][]models.Log{}
		}
		return res.Logs
	})
}

// UpdateLogs merges the property to entries map in the body into a
// feature's logs.
func (h *Handler) UpdateLogs(w http.ResponseWriter, r *http.Request) {
	layerID, featureID := chi.URLParam(r, "layerId"), chi.URLParam(r, "featureId")
	var logs map[string][]models.Log
	if !decodeBody(w, r, &logs) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.UpdateLogs(ctx, layerID, featureID, logs, meta, cb)
	}, nil)
}

// AddLog appends one entry to a property's log.
func (h *Handler) AddLog(w http.ResponseWriter, r *http.Request) {
	layerID, featureID := chi.URLParam(r, "layerId"), chi.URLParam(r, "featureId")
	property := chi.URLParam(r, "property")
	var entry models.Log
	if !decodeBody(w, r, &entry) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.AddLog(ctx, layerID, featureID, property, entry, meta, cb)
	}, nil)
}

// DeleteLog removes the entry with the given timestamp from a property's log.
func (h *Handler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	layerID, featureID := chi.URLParam(r, "layerId"), chi.URLParam(r, "featureId")
	property := chi.URLParam(r, "property")
	ts, err := strconv.ParseInt(chi.URLParam(r, "ts"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "ts must be an integer", map[string]any{"field": "ts"})
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.DeleteLog(ctx, layerID, featureID, ts, property, meta, cb)
	}, nil)
}
