// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package memory

import (
	"context"

	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

// GetBBox returns the features anchored inside a bounding box.
func (c *Connector) GetBBox(_ context.Context, layerID string, southWest, northEast []float64, _ models.Meta, cb models.Callback) {
	q, err := storage.NewBBoxQuery(southWest, northEast)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	c.query(layerID, q, func(st *layerState) []string { return st.grid.QueryBBox(q.Box) }, cb)
}

// GetSphere returns the features anchored within maxDistance meters.
func (c *Connector) GetSphere(_ context.Context, layerID string, maxDistance, lng, lat float64, _ models.Meta, cb models.Callback) {
	q, err := storage.NewSphereQuery(maxDistance, lng, lat)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	c.query(layerID, q, func(st *layerState) []string { return st.grid.QueryNearby(q.Center, q.RadiusKm()) }, cb)
}

// GetWithinPolygon returns the features anchored inside a polygon.
func (c *Connector) GetWithinPolygon(_ context.Context, layerID string, polygon *models.Feature, _ models.Meta, cb models.Callback) {
	q, err := storage.NewPolygonQuery(polygon)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	c.query(layerID, q, func(st *layerState) []string { return st.grid.QueryBBox(q.Region.Bounds()) }, cb)
}

// query narrows the layer to grid candidates and filters them exactly.
func (c *Connector) query(layerID string, q storage.Query, candidates func(*layerState) []string, cb models.Callback) {
	c.mu.RLock()
	st, ok := c.layers[layerID]
	var features []*models.Feature
	if ok {
		for _, id := range candidates(st) {
			if f := st.features[id]; f != nil {
				features = append(features, f)
			}
		}
		features = storage.Filter(features, q)
	}
	c.mu.RUnlock()

	if !ok {
		storage.Reply(cb, storage.LayerNotFound(layerID))
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Features: features})
}
