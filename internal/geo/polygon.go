// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package geo

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/models"
)

// Polygon is an outer ring followed by optional holes.
type Polygon [][]Point

// Region is the area described by a Polygon or MultiPolygon geometry.
type Region struct {
	Polygons []Polygon
	bounds   BBox
}

// NewRegion decodes a Polygon or MultiPolygon geometry.
func NewRegion(g *models.Geometry) (*Region, error) {
	if g == nil {
		return nil, ErrNoCoordinates
	}
	var polys []Polygon
	switch g.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		p, err := toPolygon(rings)
		if err != nil {
			return nil, err
		}
		polys = append(polys, p)
	case "MultiPolygon":
		var multi [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &multi); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		for _, rings := range multi {
			p, err := toPolygon(rings)
			if err != nil {
				return nil, err
			}
			polys = append(polys, p)
		}
	default:
		return nil, fmt.Errorf("geometry type %q is not a polygon", g.Type)
	}
	if len(polys) == 0 {
		return nil, ErrNoCoordinates
	}

	var all []Point
	for _, p := range polys {
		all = append(all, p[0]...)
	}
	return &Region{Polygons: polys, bounds: Bounds(all)}, nil
}

func toPolygon(rings [][][]float64) (Polygon, error) {
	if len(rings) == 0 {
		return nil, ErrNoCoordinates
	}
	poly := make(Polygon, 0, len(rings))
	for _, ring := range rings {
		if len(ring) < 3 {
			return nil, fmt.Errorf("ring needs at least 3 positions, got %d", len(ring))
		}
		pts := make([]Point, 0, len(ring))
		for _, pos := range ring {
			p, err := PointFromSlice(pos)
			if err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
		poly = append(poly, pts)
	}
	return poly, nil
}

// Bounds returns the bounding box of the region's outer rings.
func (r *Region) Bounds() BBox {
	return r.bounds
}

// Contains reports whether p lies inside any polygon and outside its holes.
func (r *Region) Contains(p Point) bool {
	if !r.bounds.Contains(p) {
		return false
	}
	for _, poly := range r.Polygons {
		if !inRing(p, poly[0]) {
			continue
		}
		inHole := false
		for _, hole := range poly[1:] {
			if inRing(p, hole) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// inRing is the even-odd ray casting test.
func inRing(p Point, ring []Point) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) &&
			p.Lng < (b.Lng-a.Lng)*(p.Lat-a.Lat)/(b.Lat-a.Lat)+a.Lng {
			inside = !inside
		}
	}
	return inside
}
