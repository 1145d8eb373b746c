// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package duckdbstore

import (
	"context"
	"fmt"
	"math"

	"github.com/tomtom215/layersync/internal/geo"
	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

const kmPerDegree = 111.0

const boxQuery = `SELECT doc FROM features
	WHERE layer_id = ? AND lng BETWEEN ? AND ? AND lat BETWEEN ? AND ?
	ORDER BY id`

// inBox returns the features of a layer whose anchor lies in b.
func (c *Connector) inBox(ctx context.Context, layerID string, b geo.BBox) ([]*models.Feature, error) {
	if _, err := loadLayer(ctx, c.conn, layerID); err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, boxQuery, layerID,
		b.SouthWest.Lng, b.NorthEast.Lng, b.SouthWest.Lat, b.NorthEast.Lat)
	if err != nil {
		return nil, fmt.Errorf("query box: %w", err)
	}
	return scanFeatures(rows)
}

func (c *Connector) answer(features []*models.Feature, err error, q storage.Query, cb models.Callback) {
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Features: storage.Filter(features, q)})
}

// GetBBox returns the features anchored inside a bounding box.
func (c *Connector) GetBBox(ctx context.Context, layerID string, southWest, northEast []float64, _ models.Meta, cb models.Callback) {
	q, err := storage.NewBBoxQuery(southWest, northEast)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	features, err := c.inBox(ctx, layerID, q.Box)
	c.answer(features, err, q, cb)
}

// GetSphere returns the features anchored within maxDistance meters.
func (c *Connector) GetSphere(ctx context.Context, layerID string, maxDistance, lng, lat float64, _ models.Meta, cb models.Callback) {
	q, err := storage.NewSphereQuery(maxDistance, lng, lat)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	features, err := c.inBox(ctx, layerID, sphereBox(q))
	c.answer(features, err, q, cb)
}

// GetWithinPolygon returns the features anchored inside a polygon.
func (c *Connector) GetWithinPolygon(ctx context.Context, layerID string, polygon *models.Feature, _ models.Meta, cb models.Callback) {
	q, err := storage.NewPolygonQuery(polygon)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	features, err := c.inBox(ctx, layerID, q.Region.Bounds())
	c.answer(features, err, q, cb)
}

// sphereBox returns a box enclosing the search circle.
func sphereBox(q storage.SphereQuery) geo.BBox {
	dLat := q.RadiusKm() / kmPerDegree
	dLng := 180.0
	if c := math.Cos(q.Center.Lat * math.Pi / 180); c > 0.01 {
		dLng = math.Min(180, q.RadiusKm()/(kmPerDegree*c))
	}
	return geo.BBox{
		SouthWest: geo.Point{Lng: q.Center.Lng - dLng, Lat: q.Center.Lat - dLat},
		NorthEast: geo.Point{Lng: q.Center.Lng + dLng, Lat: q.Center.Lat + dLat},
	}
}
