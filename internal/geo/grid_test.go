// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package geo

import (
	"fmt"
	"sync"
	"testing"
)

func TestGrid_BasicOperations(t *testing.T) {
	t.Parallel()

	grid := NewGrid(100)
	grid.Insert("nyc", Point{Lng: -74.0060, Lat: 40.7128})
	grid.Insert("la", Point{Lng: -118.2437, Lat: 34.0522})
	grid.Insert("london", Point{Lng: -0.1278, Lat: 51.5074})

	if grid.Size() != 3 {
		t.Errorf("Size() = %d, want 3", grid.Size())
	}

	p, ok := grid.Get("nyc")
	if !ok || p.Lat != 40.7128 {
		t.Errorf("Get(nyc) = %+v, %v", p, ok)
	}
	if _, ok := grid.Get("nonexistent"); ok {
		t.Error("Get(nonexistent) should return false")
	}
}

func TestGrid_InsertMovesEntry(t *testing.T) {
	t.Parallel()

	grid := NewGrid(100)
	grid.Insert("f1", Point{Lng: -74.0060, Lat: 40.7128})
	grid.Insert("f1", Point{Lng: -118.2437, Lat: 34.0522})

	if grid.Size() != 1 {
		t.Errorf("Size() after move = %d, want 1", grid.Size())
	}
	if grid.NumCells() != 1 {
		t.Errorf("NumCells() after move = %d, want 1", grid.NumCells())
	}
	if ids := grid.QueryNearby(Point{Lng: -74.0060, Lat: 40.7128}, 50); len(ids) != 0 {
		t.Errorf("old position still indexed: %v", ids)
	}
}

func TestGrid_Remove(t *testing.T) {
	t.Parallel()

	grid := NewGrid(100)
	grid.Insert("a", Point{Lng: 1, Lat: 1})
	if !grid.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if grid.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}
	if grid.NumCells() != 0 {
		t.Errorf("NumCells() = %d, want 0", grid.NumCells())
	}
}

func TestGrid_QueryNearby(t *testing.T) {
	t.Parallel()

	grid := NewGrid(10)
	grid.Insert("center", Point{Lng: 13.4050, Lat: 52.5200})
	grid.Insert("potsdam", Point{Lng: 13.0645, Lat: 52.3906})
	grid.Insert("hamburg", Point{Lng: 9.9937, Lat: 53.5511})

	tests := []struct {
		radiusKm float64
		want     []string
	}{
		{1, []string{"center"}},
		{30, []string{"center", "potsdam"}},
		{300, []string{"center", "hamburg", "potsdam"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.0fkm", tt.radiusKm), func(t *testing.T) {
			got := grid.QueryNearby(Point{Lng: 13.4050, Lat: 52.5200}, tt.radiusKm)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("QueryNearby = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGrid_QueryBBox(t *testing.T) {
	t.Parallel()

	grid := NewGrid(10)
	grid.Insert("in", Point{Lng: 5, Lat: 5})
	grid.Insert("edge", Point{Lng: 10, Lat: 10})
	grid.Insert("out", Point{Lng: 20, Lat: 5})

	got := grid.QueryBBox(BBox{SouthWest: Point{Lng: 0, Lat: 0}, NorthEast: Point{Lng: 10, Lat: 10}})
	if fmt.Sprint(got) != "[edge in]" {
		t.Errorf("QueryBBox = %v, want [edge in]", got)
	}

	world := grid.QueryBBox(BBox{SouthWest: Point{Lng: -180, Lat: -90}, NorthEast: Point{Lng: 180, Lat: 90}})
	if len(world) != 3 {
		t.Errorf("world QueryBBox = %v, want all 3", world)
	}
}

func TestGrid_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	grid := NewGrid(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := fmt.Sprintf("%d-%d", n, j)
				grid.Insert(id, Point{Lng: float64(j % 90), Lat: float64(n)})
				_ = grid.QueryNearby(Point{Lng: 0, Lat: 0}, 500)
				if j%2 == 0 {
					grid.Remove(id)
				}
			}
		}(i)
	}
	wg.Wait()

	if grid.Size() != 400 {
		t.Errorf("Size() = %d, want 400", grid.Size())
	}
}
