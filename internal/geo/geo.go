// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package geo provides the small amount of spherical geometry the storage
// connectors need for bounding box, radius and polygon queries.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/models"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// ErrNoCoordinates is returned when a geometry carries no positions.
var ErrNoCoordinates = errors.New("geometry has no coordinates")

// Point is a WGS84 position.
type Point struct {
	Lng float64
	Lat float64
}

// BBox is an axis aligned box in degrees.
type BBox struct {
	SouthWest Point
	NorthEast Point
}

// PointFromSlice converts a GeoJSON position ([lng, lat, ...]).
func PointFromSlice(pos []float64) (Point, error) {
	if len(pos) < 2 {
		return Point{}, fmt.Errorf("position needs 2 values, got %d", len(pos))
	}
	return Point{Lng: pos[0], Lat: pos[1]}, nil
}

// HaversineKm returns the great circle distance between two points in km.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p Point) bool {
	return p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng &&
		p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat
}

// Points flattens every position of a geometry, whatever its nesting.
func Points(g *models.Geometry) ([]Point, error) {
	if g == nil || len(g.Coordinates) == 0 {
		return nil, ErrNoCoordinates
	}
	var raw any
	if err := json.Unmarshal(g.Coordinates, &raw); err != nil {
		return nil, fmt.Errorf("decode coordinates: %w", err)
	}
	var out []Point
	if err := flatten(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoCoordinates
	}
	return out, nil
}

func flatten(v any, out *[]Point) error {
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("coordinates must be arrays, got %T", v)
	}
	if len(arr) >= 2 {
		lng, okLng := arr[0].(float64)
		lat, okLat := arr[1].(float64)
		if okLng && okLat {
			*out = append(*out, Point{Lng: lng, Lat: lat})
			return nil
		}
	}
	for _, child := range arr {
		if err := flatten(child, out); err != nil {
			return err
		}
	}
	return nil
}

// Anchor returns the point used to index a geometry: the position itself for
// a Point, the mean of all positions otherwise.
func Anchor(g *models.Geometry) (Point, error) {
	pts, err := Points(g)
	if err != nil {
		return Point{}, err
	}
	if len(pts) == 1 {
		return pts[0], nil
	}
	var sum Point
	for _, p := range pts {
		sum.Lng += p.Lng
		sum.Lat += p.Lat
	}
	n := float64(len(pts))
	return Point{Lng: sum.Lng / n, Lat: sum.Lat / n}, nil
}

// Bounds returns the bounding box of a set of points.
func Bounds(pts []Point) BBox {
	b := BBox{
		SouthWest: Point{Lng: math.Inf(1), Lat: math.Inf(1)},
		NorthEast: Point{Lng: math.Inf(-1), Lat: math.Inf(-1)},
	}
	for _, p := range pts {
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
	}
	return b
}
