// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package manager

import (
	"context"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
)

// FindLayer returns a copy of the directory definition, or nil.
func (m *Manager) FindLayer(layerID string) *models.LayerDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.layers[layerKey(layerID)].Clone()
}

// Layers returns every layer definition ordered by id.
func (m *Manager) Layers() []*models.LayerDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.LayerDefinition, 0, len(m.layers))
	for _, id := range sortedKeys(m.layers) {
		out = append(out, m.layers[id].Clone())
	}
	return out
}

// AddLayer registers a new layer. Defaults are filled in, the layer is stamped
// with the current time and its storage field is set to the resolved storage
// connector, or cleared when none resolves. An existing id reports ResultLayerAlreadyExists and changes nothing.
func (m *Manager) AddLayer(ctx context.Context, layer *models.Layer, meta models.Meta, cb models.Callback) {
	cb = m.observe("addLayer", cb)
	if layer == nil {
		cb(models.Failure(models.ResultError, "layer is required"))
		return
	}

	layer.FillDefaults(m.newID)
	layer.Updated = m.stamp()
	s := m.registry.Resolve(layer.Storage)
	layer.Storage = ""
	if s != nil {
		layer.Storage = s.ID()
	}

	m.mu.Lock()
	if _, exists := m.layers[layer.ID]; exists {
		m.mu.Unlock()
		cb(models.Failuref(models.ResultLayerAlreadyExists, "layer %s already exists", layer.ID))
		return
	}
	m.layers[layer.ID] = layer.Definition()
	m.mu.Unlock()

	logging.CtxInfo(ctx).Str("layer", layer.ID).Str("storage", layer.Storage).Str("source", meta.Source).Msg("Adding layer")
	m.updateSizes()
	m.saveLayers.Schedule()

	m.notifyInterfaces("addLayer", meta, func(c connector.Connector, done models.Callback) {
		c.InitLayer(layer, meta)
		c.AddLayer(ctx, layer, meta, done)
	})

	if s == nil {
		cb(models.OK())
		return
	}
	s.AddLayer(ctx, layer, meta, timed(s, "addLayer", cb))
}

// GetLayer returns the full layer, features included, from its storage.
func (m *Manager) GetLayer(ctx context.Context, layerID string, meta models.Meta, cb models.Callback) {
	cb = m.observe("getLayer", cb)
	s := m.FindStorageForLayerID(layerID)
	if s == nil {
		cb(models.Failuref(models.ResultLayerNotFound, "layer %s not found", layerID))
		return
	}
	s.GetLayer(ctx, layerKey(layerID), meta, timed(s, "getLayer", cb))
}

// UpdateLayer replaces a layer's directory definition and pushes the layer to
// its storage and the interface connectors. A layer that does not exist yet is
// added first. The caller is answered as soon as the directory is updated;
// storage failures are logged.
func (m *Manager) UpdateLayer(ctx context.Context, layer *models.Layer, meta models.Meta, cb models.Callback) {
	cb = m.observe("updateLayer", cb)
	if layer == nil {
		cb(models.Failure(models.ResultError, "layer is required"))
		return
	}
	layer.ID = layerKey(layer.ID)

	if layer.ID == "" || m.FindLayer(layer.ID) == nil {
		m.AddLayer(ctx, layer, meta, func(res *models.CallbackResult) {
			if !res.IsOK() {
				logging.CtxWarn(ctx).Str("layer", layer.ID).Str("error", res.Error).Msg("Implicit add before update failed")
			}
			m.applyLayerUpdate(ctx, layer, meta, cb)
		})
		return
	}
	m.applyLayerUpdate(ctx, layer, meta, cb)
}

func (m *Manager) applyLayerUpdate(ctx context.Context, layer *models.Layer, meta models.Meta, cb models.Callback) {
	layer.FillDefaults(m.newID)
	layer.Updated = m.stamp()

	m.mu.Lock()
	if existing := m.layers[layer.ID]; existing != nil && layer.Storage == "" {
		layer.Storage = existing.Storage
	}
	m.layers[layer.ID] = layer.Definition()
	m.mu.Unlock()
	m.saveLayers.Schedule()

	m.notifyInterfaces("updateLayer", meta, func(c connector.Connector, done models.Callback) {
		c.UpdateLayer(ctx, layer, meta, done)
	})

	if s := m.registry.Resolve(layer.Storage); s != nil {
		s.UpdateLayer(ctx, layer, meta, timed(s, "updateLayer", func(res *models.CallbackResult) {
			if !res.IsOK() {
				logging.CtxWarn(ctx).Str("layer", layer.ID).Str("error", res.Error).Msg("Storage rejected layer update")
				return
			}
			logging.CtxDebug(ctx).Str("layer", layer.ID).Msg("Layer update stored")
		}))
	}
	cb(models.OK())
}

// DeleteLayer asks the owning storage to delete the layer. The directory entry
// is removed and the interfaces are notified when storage answers, whatever
// the answer. Without a storage connector the entry is removed immediately.
func (m *Manager) DeleteLayer(ctx context.Context, layerID string, meta models.Meta, cb models.Callback) {
	cb = m.observe("deleteLayer", cb)
	id := layerKey(layerID)

	finish := func(res *models.CallbackResult) {
		m.mu.Lock()
		delete(m.layers, id)
		m.mu.Unlock()
		m.updateSizes()
		m.saveLayers.Schedule()

		m.notifyInterfaces("deleteLayer", meta, func(c connector.Connector, done models.Callback) {
			c.DeleteLayer(ctx, id, meta, done)
		})
		logging.CtxInfo(ctx).Str("layer", id).Int("result", int(res.Result)).Msg("Layer deleted")
		cb(res)
	}

	s := m.FindStorageForLayerID(id)
	if s == nil {
		finish(models.OK())
		return
	}
	s.DeleteLayer(ctx, id, meta, timed(s, "deleteLayer", finish))
}

// touchLayer stamps the directory entry's updated time. It returns the
// definition's storage id and false when the layer is unknown.
func (m *Manager) touchLayer(layerID string) (string, bool) {
	m.mu.Lock()
	def, ok := m.layers[layerKey(layerID)]
	storage := ""
	if ok {
		def.Updated = m.stamp()
		storage = def.Storage
	}
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	m.saveLayers.Schedule()
	return storage, true
}
