// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package storage

import (
	"fmt"

	"github.com/tomtom215/layersync/internal/geo"
	"github.com/tomtom215/layersync/internal/models"
)

// Query selects features by location.
type Query interface {
	// Match reports whether the feature's anchor satisfies the query.
	Match(f *models.Feature) bool
}

// BBoxQuery matches features anchored inside a box.
type BBoxQuery struct {
	Box geo.BBox
}

// NewBBoxQuery builds a BBoxQuery from [lng, lat] corners.
func NewBBoxQuery(southWest, northEast []float64) (BBoxQuery, error) {
	sw, err := geo.PointFromSlice(southWest)
	if err != nil {
		return BBoxQuery{}, invalid("south-west corner: %v", err)
	}
	ne, err := geo.PointFromSlice(northEast)
	if err != nil {
		return BBoxQuery{}, invalid("north-east corner: %v", err)
	}
	return BBoxQuery{Box: geo.BBox{SouthWest: sw, NorthEast: ne}}, nil
}

// Match implements Query.
func (q BBoxQuery) Match(f *models.Feature) bool {
	p, ok := anchor(f)
	return ok && q.Box.Contains(p)
}

// SphereQuery matches features anchored within MaxDistance meters of Center.
type SphereQuery struct {
	Center      geo.Point
	MaxDistance float64
}

// NewSphereQuery validates the distance and builds a SphereQuery.
func NewSphereQuery(maxDistance, lng, lat float64) (SphereQuery, error) {
	if maxDistance <= 0 {
		return SphereQuery{}, invalid("max distance must be positive, got %v", maxDistance)
	}
	return SphereQuery{Center: geo.Point{Lng: lng, Lat: lat}, MaxDistance: maxDistance}, nil
}

// RadiusKm returns the search radius in kilometers.
func (q SphereQuery) RadiusKm() float64 {
	return q.MaxDistance / 1000
}

// Match implements Query.
func (q SphereQuery) Match(f *models.Feature) bool {
	p, ok := anchor(f)
	return ok && geo.HaversineKm(q.Center, p) <= q.RadiusKm()
}

// PolygonQuery matches features anchored inside a polygon.
type PolygonQuery struct {
	Region *geo.Region
}

// NewPolygonQuery decodes the polygon feature's geometry.
func NewPolygonQuery(polygon *models.Feature) (PolygonQuery, error) {
	if polygon == nil {
		return PolygonQuery{}, invalid("polygon feature is required")
	}
	r, err := geo.NewRegion(polygon.Geometry)
	if err != nil {
		return PolygonQuery{}, invalid("%v", err)
	}
	return PolygonQuery{Region: r}, nil
}

// Match implements Query.
func (q PolygonQuery) Match(f *models.Feature) bool {
	p, ok := anchor(f)
	return ok && q.Region.Contains(p)
}

// Filter returns clones of the matching features ordered by id.
func Filter(features []*models.Feature, q Query) []*models.Feature {
	out := make([]*models.Feature, 0)
	for _, f := range features {
		if q.Match(f) {
			out = append(out, f.Clone())
		}
	}
	models.SortFeatures(out)
	return out
}

func anchor(f *models.Feature) (geo.Point, bool) {
	if f == nil || f.Geometry == nil {
		return geo.Point{}, false
	}
	p, err := geo.Anchor(f.Geometry)
	if err != nil {
		return geo.Point{}, false
	}
	return p, true
}

func invalid(format string, args ...any) error {
	return &models.CodeError{Code: models.ResultError, Message: fmt.Sprintf(format, args...)}
}
