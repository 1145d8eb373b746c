// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

// AddLayer stores a new layer and its features.
func (c *Connector) AddLayer(_ context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	c.mu.Lock()
	if _, exists := c.layers[l.ID]; exists {
		c.mu.Unlock()
		storage.Reply(cb, storage.LayerExists(l.ID))
		return
	}
	st := c.newLayerState(l)
	c.layers[l.ID] = st
	out := st.layer.Clone()
	c.mu.Unlock()

	c.changed(ChangeLayer, l.ID, false)
	cb(&models.CallbackResult{Result: models.ResultOK, Layer: out})
}

// GetLayer returns a layer with its features.
func (c *Connector) GetLayer(_ context.Context, layerID string, _ models.Meta, cb models.Callback) {
	l, ok := c.Snapshot(layerID)
	if !ok {
		storage.Reply(cb, storage.LayerNotFound(layerID))
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Layer: l})
}

// UpdateLayer replaces a layer's metadata, creating the layer if needed. The
// stored features are replaced only when the update carries features.
func (c *Connector) UpdateLayer(_ context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	c.mu.Lock()
	st, ok := c.layers[l.ID]
	switch {
	case !ok || len(l.Features) > 0:
		c.layers[l.ID] = c.newLayerState(l)
	default:
		st.layer = l.WithoutFeatures()
	}
	c.mu.Unlock()

	c.changed(ChangeLayer, l.ID, false)
	cb(models.OK())
}

// DeleteLayer removes a layer and its features.
func (c *Connector) DeleteLayer(_ context.Context, layerID string, _ models.Meta, cb models.Callback) {
	c.mu.Lock()
	_, ok := c.layers[layerID]
	delete(c.layers, layerID)
	c.mu.Unlock()

	if !ok {
		storage.Reply(cb, storage.LayerNotFound(layerID))
		return
	}
	c.changed(ChangeLayer, layerID, true)
	cb(models.OK())
}

// AddFeature stores a feature, replacing one with the same id.
func (c *Connector) AddFeature(_ context.Context, layerID string, f *models.Feature, _ models.Meta, cb models.Callback) {
	f = f.Clone()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Type == "" {
		f.Type = models.FeatureType
	}

	c.mu.Lock()
	st, ok := c.layers[layerID]
	if ok {
		st.put(f)
	}
	c.mu.Unlock()

	if !ok {
		storage.Reply(cb, storage.LayerNotFound(layerID))
		return
	}
	c.changed(ChangeLayer, layerID, false)
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: f.Clone()})
}

// GetFeature returns one feature.
func (c *Connector) GetFeature(_ context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	c.mu.RLock()
	var f *models.Feature
	st, ok := c.layers[layerID]
	if ok {
		f = st.features[featureID].Clone()
	}
	c.mu.RUnlock()

	switch {
	case !ok:
		storage.Reply(cb, storage.LayerNotFound(layerID))
	case f == nil:
		storage.Reply(cb, storage.FeatureNotFound(layerID, featureID))
	default:
		cb(&models.CallbackResult{Result: models.ResultOK, Feature: f})
	}
}

// UpdateFeature writes a feature over the stored one, creating it when absent.
func (c *Connector) UpdateFeature(_ context.Context, layerID string, f *models.Feature, useLog bool, meta models.Meta, cb models.Callback) {
	now := c.stamp()
	c.mu.Lock()
	st, ok := c.layers[layerID]
	var next *models.Feature
	if ok {
		next = storage.ApplyUpdate(st.features[f.ID], f, useLog, meta.User, now)
		st.put(next)
	}
	c.mu.Unlock()

	if !ok {
		storage.Reply(cb, storage.LayerNotFound(layerID))
		return
	}
	c.changed(ChangeLayer, layerID, false)
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: next.Clone()})
}

// DeleteFeature removes one feature.
func (c *Connector) DeleteFeature(_ context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	c.mu.Lock()
	st, ok := c.layers[layerID]
	removed := ok && st.remove(featureID)
	c.mu.Unlock()

	switch {
	case !ok:
		storage.Reply(cb, storage.LayerNotFound(layerID))
	case !removed:
		storage.Reply(cb, storage.FeatureNotFound(layerID, featureID))
	default:
		c.changed(ChangeLayer, layerID, false)
		cb(models.OK())
	}
}

// AddLog appends one log entry and sets the property to its value.
func (c *Connector) AddLog(_ context.Context, layerID, featureID, property string, log models.Log, _ models.Meta, cb models.Callback) {
	err := c.withFeature(layerID, featureID, func(_ *layerState, f *models.Feature) error {
		storage.MergeLogs(f, map[string][]models.Log{property: {log}})
		return nil
	})
	c.reply(layerID, err, cb)
}

// GetLog returns a feature's logs.
func (c *Connector) GetLog(_ context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	var logs map[string][]models.Log
	c.mu.RLock()
	st, ok := c.layers[layerID]
	var f *models.Feature
	if ok {
		f = st.features[featureID]
		if f != nil {
			logs = models.CloneLogs(f.Logs)
		}
	}
	c.mu.RUnlock()

	switch {
	case !ok:
		storage.Reply(cb, storage.LayerNotFound(layerID))
	case f == nil:
		storage.Reply(cb, storage.FeatureNotFound(layerID, featureID))
	default:
		if logs == nil {
			logs = map[string][]models.Log{}
		}
		cb(&models.CallbackResult{Result: models.ResultOK, Logs: logs})
	}
}

// DeleteLog removes the entries of a property with the given timestamp.
func (c *Connector) DeleteLog(_ context.Context, layerID, featureID string, ts int64, property string, _ models.Meta, cb models.Callback) {
	err := c.withFeature(layerID, featureID, func(_ *layerState, f *models.Feature) error {
		if !storage.DeleteLog(f, ts, property) {
			return &models.CodeError{Code: models.ResultError, Message: fmt.Sprintf("no %s log at %d", property, ts)}
		}
		return nil
	})
	c.reply(layerID, err, cb)
}

// UpdateLogs merges log entries into a feature.
func (c *Connector) UpdateLogs(_ context.Context, layerID, featureID string, logs map[string][]models.Log, _ models.Meta, cb models.Callback) {
	err := c.withFeature(layerID, featureID, func(_ *layerState, f *models.Feature) error {
		storage.MergeLogs(f, logs)
		return nil
	})
	c.reply(layerID, err, cb)
}

// UpdateProperty sets one property of a feature.
func (c *Connector) UpdateProperty(_ context.Context, layerID, featureID, property string, value any, useLog bool, meta models.Meta, cb models.Callback) {
	now := c.stamp()
	err := c.withFeature(layerID, featureID, func(_ *layerState, f *models.Feature) error {
		storage.SetProperty(f, property, value, useLog, meta.User, now)
		return nil
	})
	c.reply(layerID, err, cb)
}

func (c *Connector) reply(layerID string, err error, cb models.Callback) {
	if err == nil {
		c.changed(ChangeLayer, layerID, false)
	}
	storage.Reply(cb, err)
}
