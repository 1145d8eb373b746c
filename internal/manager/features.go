// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package manager

import (
	"context"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/models"
)

func normalizeFeature(f *models.Feature) {
	if f.Type == "" {
		f.Type = models.FeatureType
	}
}

// AddFeature adds a feature to a known layer. A feature without an id gets a
// generated one.
func (m *Manager) AddFeature(ctx context.Context, layerID string, f *models.Feature, meta models.Meta, cb models.Callback) {
	cb = m.observe("addFeature", cb)
	if f == nil {
		cb(models.Failure(models.ResultError, "feature is required"))
		return
	}
	storage, ok := m.touchLayer(layerID)
	if !ok {
		cb(models.Failuref(models.ResultError, "layer %s not found", layerID))
		return
	}
	if f.ID == "" {
		f.ID = m.newID()
	}
	normalizeFeature(f)
	layerID = layerKey(layerID)

	if s := m.registry.Resolve(storage); s != nil {
		s.AddFeature(ctx, layerID, f, meta, timed(s, "addFeature", cb))
	} else {
		cb(storageNotFound())
	}

	m.notifyInterfaces("addFeature", meta, func(c connector.Connector, done models.Callback) {
		c.AddFeature(ctx, layerID, f, meta, done)
	})
}

// GetFeature returns one feature from the layer's storage.
func (m *Manager) GetFeature(ctx context.Context, layerID, featureID string, meta models.Meta, cb models.Callback) {
	cb = m.observe("getFeature", cb)
	s := m.FindStorageForLayerID(layerID)
	if s == nil {
		cb(storageNotFound())
		return
	}
	s.GetFeature(ctx, layerKey(layerID), featureID, meta, timed(s, "getFeature", cb))
}

// UpdateFeature writes a feature to storage with change logging enabled and
// pushes it to the interfaces without logging.
func (m *Manager) UpdateFeature(ctx context.Context, layerID string, f *models.Feature, meta models.Meta, cb models.Callback) {
	cb = m.observe("updateFeature", cb)
	if f == nil || f.ID == "" {
		cb(models.Failure(models.ResultError, "feature with id is required"))
		return
	}
	normalizeFeature(f)
	layerID = layerKey(layerID)

	if s := m.FindStorageForLayerID(layerID); s != nil {
		s.UpdateFeature(ctx, layerID, f, true, meta, timed(s, "updateFeature", cb))
	} else {
		cb(storageNotFound())
	}

	m.notifyInterfaces("updateFeature", meta, func(c connector.Connector, done models.Callback) {
		c.UpdateFeature(ctx, layerID, f, false, meta, done)
	})
}

// DeleteFeature removes a feature from storage and tells the interfaces.
func (m *Manager) DeleteFeature(ctx context.Context, layerID, featureID string, meta models.Meta, cb models.Callback) {
	cb = m.observe("deleteFeature", cb)
	layerID = layerKey(layerID)

	if s := m.FindStorageForLayerID(layerID); s != nil {
		s.DeleteFeature(ctx, layerID, featureID, meta, timed(s, "deleteFeature", cb))
	} else {
		cb(storageNotFound())
	}

	m.notifyInterfaces("deleteFeature", meta, func(c connector.Connector, done models.Callback) {
		c.DeleteFeature(ctx, layerID, featureID, meta, done)
	})
}

// UpdateProperty sets one property of a feature in storage.
func (m *Manager) UpdateProperty(ctx context.Context, layerID, featureID, property string, value any, useLog bool, meta models.Meta, cb models.Callback) {
	cb = m.observe("updateProperty", cb)
	storage, ok := m.touchLayer(layerID)
	if !ok {
		cb(models.Failuref(models.ResultLayerNotFound, "layer %s not found", layerID))
		return
	}
	layerID = layerKey(layerID)

	if s := m.registry.Resolve(storage); s != nil {
		s.UpdateProperty(ctx, layerID, featureID, property, value, useLog, meta, timed(s, "updateProperty", cb))
	} else {
		cb(storageNotFound())
	}

	m.notifyInterfaces("updateProperty", meta, func(c connector.Connector, done models.Callback) {
		c.UpdateProperty(ctx, layerID, featureID, property, value, useLog, meta, done)
	})
}

// backfillLogs stamps entries without a timestamp and sets their property name.
func (m *Manager) backfillLogs(logs map[string][]models.Log) {
	now := m.stamp()
	for prop, entries := range logs {
		for i := range entries {
			if entries[i].TS == 0 {
				entries[i].TS = now
			}
			if entries[i].Prop == "" {
				entries[i].Prop = prop
			}
		}
	}
}

// UpdateLogs merges per-property log entries into a feature. Entries without
// a timestamp are stamped with the current time; existing timestamps are kept.
func (m *Manager) UpdateLogs(ctx context.Context, layerID, featureID string, logs map[string][]models.Log, meta models.Meta, cb models.Callback) {
	cb = m.observe("updateLogs", cb)
	storage, ok := m.touchLayer(layerID)
	if !ok {
		cb(models.Failuref(models.ResultLayerNotFound, "layer %s not found", layerID))
		return
	}
	layerID = layerKey(layerID)
	m.backfillLogs(logs)

	if s := m.registry.Resolve(storage); s != nil {
		s.UpdateLogs(ctx, layerID, featureID, logs, meta, timed(s, "updateLogs", cb))
	} else {
		cb(storageNotFound())
	}

	m.notifyInterfaces("updateLogs", meta, func(c connector.Connector, done models.Callback) {
		c.UpdateLogs(ctx, layerID, featureID, logs, meta, done)
	})
}

// AddLog appends one log entry for a property.
func (m *Manager) AddLog(ctx context.Context, layerID, featureID, property string, log models.Log, meta models.Meta, cb models.Callback) {
	cb = m.observe("addLog", cb)
	if log.TS == 0 {
		log.TS = m.stamp()
	}
	if log.Prop == "" {
		log.Prop = property
	}
	layerID = layerKey(layerID)

	if s := m.FindStorageForLayerID(layerID); s != nil {
		s.AddLog(ctx, layerID, featureID, property, log, meta, timed(s, "addLog", cb))
	} else {
		cb(storageNotFound())
	}

	m.notifyInterfaces("addLog", meta, func(c connector.Connector, done models.Callback) {
		c.AddLog(ctx, layerID, featureID, property, log, meta, done)
	})
}

// GetLog returns a feature's logs.
func (m *Manager) GetLog(ctx context.Context, layerID, featureID string, meta models.Meta, cb models.Callback) {
	cb = m.observe("getLog", cb)
	s := m.FindStorageForLayerID(layerID)
	if s == nil {
		cb(storageNotFound())
		return
	}
	s.GetLog(ctx, layerKey(layerID), featureID, meta, timed(s, "getLog", cb))
}

// DeleteLog removes the log entries of a property with the given timestamp.
func (m *Manager) DeleteLog(ctx context.Context, layerID, featureID string, ts int64, property string, meta models.Meta, cb models.Callback) {
	cb = m.observe("deleteLog", cb)
	s := m.FindStorageForLayerID(layerID)
	if s == nil {
		cb(storageNotFound())
		return
	}
	s.DeleteLog(ctx, layerKey(layerID), featureID, ts, property, meta, timed(s, "deleteLog", cb))
}

// GetBBox returns the features of a layer inside a bounding box.
func (m *Manager) GetBBox(ctx context.Context, layerID string, southWest, northEast []float64, meta models.Meta, cb models.Callback) {
	cb = m.observe("getBBox", cb)
	if len(southWest) < 2 || len(northEast) < 2 {
		cb(models.Failure(models.ResultError, "bbox corners need [lng, lat]"))
		return
	}
	s := m.FindStorageForLayerID(layerID)
	if s == nil {
		cb(storageNotFound())
		return
	}
	s.GetBBox(ctx, layerKey(layerID), southWest, northEast, meta, timed(s, "getBBox", cb))
}

// GetSphere returns the features within maxDistance meters of a point.
func (m *Manager) GetSphere(ctx context.Context, layerID string, maxDistance, lng, lat float64, meta models.Meta, cb models.Callback) {
	cb = m.observe("getSphere", cb)
	if maxDistance <= 0 {
		cb(models.Failure(models.ResultError, "maxDistance must be positive"))
		return
	}
	s := m.FindStorageForLayerID(layerID)
	if s == nil {
		cb(storageNotFound())
		return
	}
	s.GetSphere(ctx, layerKey(layerID), maxDistance, lng, lat, meta, timed(s, "getSphere", cb))
}

// GetWithinPolygon returns the features inside a polygon feature.
func (m *Manager) GetWithinPolygon(ctx context.Context, layerID string, polygon *models.Feature, meta models.Meta, cb models.Callback) {
	cb = m.observe("getWithinPolygon", cb)
	if polygon == nil || polygon.Geometry == nil {
		cb(models.Failure(models.ResultError, "polygon geometry is required"))
		return
	}
	s := m.FindStorageForLayerID(layerID)
	if s == nil {
		cb(storageNotFound())
		return
	}
	s.GetWithinPolygon(ctx, layerKey(layerID), polygon, meta, timed(s, "getWithinPolygon", cb))
}

// FindFeature fetches a feature from the layer's storage and waits for the
// answer or for ctx to end.
func (m *Manager) FindFeature(ctx context.Context, layerID, featureID string) (*models.Feature, error) {
	done := make(chan *models.CallbackResult, 1)
	m.GetFeature(ctx, layerID, featureID, models.Meta{Source: "manager"}, func(res *models.CallbackResult) {
		done <- res
	})
	select {
	case res := <-done:
		if err := res.Err(); err != nil {
			return nil, err
		}
		if res.Feature == nil {
			return nil, &models.CodeError{Code: models.ResultFeatureNotFound, Message: featureID}
		}
		return res.Feature, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
