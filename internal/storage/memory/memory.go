// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package memory implements a storage connector that keeps layers, projects
// and keys in process memory. Features are indexed in a spatial grid per layer
// so bounding box and distance queries only visit nearby cells.
//
// It is the default storage connector and the base of the file connector,
// which observes its changes through WithObserver.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/geo"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

// DefaultCellSizeKm is the spatial grid cell size.
const DefaultCellSizeKm = 10.0

// ChangeKind names what a Change refers to.
type ChangeKind int

const (
	ChangeLayer ChangeKind = iota
	ChangeProject
	ChangeKey
)

// Change describes one mutation of the store.
type Change struct {
	Kind    ChangeKind
	ID      string
	Deleted bool
}

// Option customizes a Connector.
type Option func(*Connector)

// WithClock replaces time.Now for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Connector) { c.now = now }
}

// WithCellSize sets the spatial grid cell size in kilometers.
func WithCellSize(km float64) Option {
	return func(c *Connector) { c.cellKm = km }
}

// WithObserver registers a function called after every mutation, outside
// the store's lock.
func WithObserver(fn func(Change)) Option {
	return func(c *Connector) { c.observer = fn }
}

type layerState struct {
	layer    *models.Layer
	features map[string]*models.Feature
	grid     *geo.Grid
}

// Connector is the in-memory storage connector.
type Connector struct {
	connector.Base

	mu       sync.RWMutex
	layers   map[string]*layerState
	projects map[string]*models.Project
	keys     map[string]*models.Key
	values   map[string]models.KeyValue

	now      func() time.Time
	cellKm   float64
	observer func(Change)
}

// New creates an empty in-memory store.
func New(opts ...Option) *Connector {
	c := &Connector{
		Base:     connector.NewBase(connector.RoleStorage, false),
		layers:   make(map[string]*layerState),
		projects: make(map[string]*models.Project),
		keys:     make(map[string]*models.Key),
		values:   make(map[string]models.KeyValue),
		now:      time.Now,
		cellKm:   DefaultCellSizeKm,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init implements connector.Connector.
func (c *Connector) Init(_ connector.Dispatcher, _ connector.Options) error {
	logging.Info().Str("connector", c.ID()).Msg("Memory storage ready")
	return nil
}

func (c *Connector) changed(kind ChangeKind, id string, deleted bool) {
	if c.observer != nil {
		c.observer(Change{Kind: kind, ID: id, Deleted: deleted})
	}
}

func (c *Connector) stamp() int64 {
	return c.now().UnixMilli()
}

func (c *Connector) newLayerState(l *models.Layer) *layerState {
	st := &layerState{
		layer:    l.WithoutFeatures(),
		features: make(map[string]*models.Feature, len(l.Features)),
		grid:     geo.NewGrid(c.cellKm),
	}
	for _, f := range l.Features {
		if f == nil {
			continue
		}
		f = f.Clone()
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		st.put(f)
	}
	return st
}

func (st *layerState) put(f *models.Feature) {
	st.features[f.ID] = f
	if f.Geometry == nil {
		st.grid.Remove(f.ID)
		return
	}
	p, err := geo.Anchor(f.Geometry)
	if err != nil {
		st.grid.Remove(f.ID)
		return
	}
	st.grid.Insert(f.ID, p)
}

func (st *layerState) remove(featureID string) bool {
	if _, ok := st.features[featureID]; !ok {
		return false
	}
	delete(st.features, featureID)
	st.grid.Remove(featureID)
	return true
}

func (st *layerState) snapshot() *models.Layer {
	l := st.layer.Clone()
	l.Features = make([]*models.Feature, 0, len(st.features))
	for _, f := range st.features {
		l.Features = append(l.Features, f.Clone())
	}
	models.SortFeatures(l.Features)
	return l
}

// Snapshot returns a copy of a stored layer with its features.
func (c *Connector) Snapshot(layerID string) (*models.Layer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.layers[layerID]
	if !ok {
		return nil, false
	}
	return st.snapshot(), true
}

// Restore loads a layer without notifying the observer.
func (c *Connector) Restore(l *models.Layer) {
	c.mu.Lock()
	c.layers[l.ID] = c.newLayerState(l)
	c.mu.Unlock()
}

// LayerIDs returns the ids of stored layers.
func (c *Connector) LayerIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.layers))
	for id := range c.layers {
		ids = append(ids, id)
	}
	return ids
}

// withFeature runs fn on a stored feature under the write lock.
func (c *Connector) withFeature(layerID, featureID string, fn func(st *layerState, f *models.Feature) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.layers[layerID]
	if !ok {
		return storage.LayerNotFound(layerID)
	}
	f, ok := st.features[featureID]
	if !ok {
		return storage.FeatureNotFound(layerID, featureID)
	}
	return fn(st, f)
}
