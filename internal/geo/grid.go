// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package geo

import (
	"math"
	"sort"
	"sync"
)

// kmPerDegree is the approximate length of one degree of latitude.
const kmPerDegree = 111.0

// Grid divides geographic space into cells for fast proximity queries.
// Instead of comparing every feature of a layer, bbox and radius queries only
// visit the cells overlapping the query area.
//
// Time Complexity:
//   - Insert: O(1)
//   - QueryNearby, QueryBBox: O(k) where k = entries in the visited cells
//   - Remove: O(1) amortized
type Grid struct {
	mu       sync.RWMutex
	cells    map[cellKey][]*gridEntry
	cellSize float64 // degrees
	entries  map[string]*gridEntry
}

type cellKey struct {
	X, Y int
}

type gridEntry struct {
	id   string
	p    Point
	cell cellKey
}

// NewGrid creates a grid with cells of roughly cellSizeKm on each side.
func NewGrid(cellSizeKm float64) *Grid {
	if cellSizeKm <= 0 {
		cellSizeKm = 10
	}
	return &Grid{
		cells:    make(map[cellKey][]*gridEntry),
		cellSize: cellSizeKm / kmPerDegree,
		entries:  make(map[string]*gridEntry),
	}
}

func (g *Grid) keyFor(p Point) cellKey {
	lng := p.Lng
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return cellKey{X: int(math.Floor(lng / g.cellSize)), Y: int(math.Floor(p.Lat / g.cellSize))}
}

// Insert adds or moves an entry.
func (g *Grid) Insert(id string, p Point) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[id]; ok {
		g.removeFromCellLocked(existing)
	}
	e := &gridEntry{id: id, p: p, cell: g.keyFor(p)}
	g.cells[e.cell] = append(g.cells[e.cell], e)
	g.entries[id] = e
}

// Remove deletes an entry by id.
func (g *Grid) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[id]
	if !ok {
		return false
	}
	g.removeFromCellLocked(e)
	delete(g.entries, id)
	return true
}

// removeFromCellLocked swaps the entry out of its cell (caller must hold lock).
func (g *Grid) removeFromCellLocked(e *gridEntry) {
	cell := g.cells[e.cell]
	for i, c := range cell {
		if c.id == e.id {
			cell[i] = cell[len(cell)-1]
			cell = cell[:len(cell)-1]
			break
		}
	}
	if len(cell) == 0 {
		delete(g.cells, e.cell)
		return
	}
	g.cells[e.cell] = cell
}

// Get returns an entry's indexed point.
func (g *Grid) Get(id string) (Point, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entries[id]
	if !ok {
		return Point{}, false
	}
	return e.p, true
}

// QueryNearby returns the ids of entries within radiusKm of center, sorted.
func (g *Grid) QueryNearby(center Point, radiusKm float64) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Longitude degrees shrink towards the poles, so widen the X span.
	spanY := int(math.Ceil(radiusKm/kmPerDegree/g.cellSize)) + 1
	var spanX int
	if c := math.Cos(center.Lat * math.Pi / 180); c > 0.01 {
		spanX = int(math.Ceil(radiusKm/(kmPerDegree*c)/g.cellSize)) + 1
	} else {
		spanX = int(math.Ceil(360/g.cellSize)) + 1
	}
	origin := g.keyFor(center)

	var ids []string
	if (2*spanX+1)*(2*spanY+1) > len(g.entries) {
		for _, e := range g.entries {
			if HaversineKm(center, e.p) <= radiusKm {
				ids = append(ids, e.id)
			}
		}
		sort.Strings(ids)
		return ids
	}

	for dx := -spanX; dx <= spanX; dx++ {
		for dy := -spanY; dy <= spanY; dy++ {
			for _, e := range g.cells[cellKey{X: origin.X + dx, Y: origin.Y + dy}] {
				if HaversineKm(center, e.p) <= radiusKm {
					ids = append(ids, e.id)
				}
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// QueryBBox returns the ids of entries inside the box, sorted.
func (g *Grid) QueryBBox(b BBox) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	lo := g.keyFor(b.SouthWest)
	hi := g.keyFor(b.NorthEast)

	var ids []string
	// Boxes spanning many cells are cheaper to answer from the entry index.
	if (hi.X-lo.X+1)*(hi.Y-lo.Y+1) > len(g.entries) {
		for _, e := range g.entries {
			if b.Contains(e.p) {
				ids = append(ids, e.id)
			}
		}
		sort.Strings(ids)
		return ids
	}

	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for _, e := range g.cells[cellKey{X: x, Y: y}] {
				if b.Contains(e.p) {
					ids = append(ids, e.id)
				}
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of entries.
func (g *Grid) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// NumCells returns the number of non-empty cells.
func (g *Grid) NumCells() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}

// Clear removes all entries.
func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = make(map[cellKey][]*gridEntry)
	g.entries = make(map[string]*gridEntry)
}
