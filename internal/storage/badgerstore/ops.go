// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

// AddLayer stores a new layer and its features.
func (c *Connector) AddLayer(_ context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	err := c.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, layerKey(l.ID))
		if err != nil {
			return err
		}
		if ok {
			return storage.LayerExists(l.ID)
		}
		return putLayer(txn, l)
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Layer: l.WithoutFeatures()})
}

func putLayer(txn *badger.Txn, l *models.Layer) error {
	if err := setJSON(txn, layerKey(l.ID), l.WithoutFeatures()); err != nil {
		return err
	}
	for _, f := range l.Features {
		if f == nil {
			continue
		}
		if f.ID == "" {
			f = f.Clone()
			f.ID = uuid.NewString()
		}
		if err := setJSON(txn, featureKey(l.ID, f.ID), f); err != nil {
			return err
		}
	}
	return nil
}

func loadLayer(txn *badger.Txn, layerID string) (*models.Layer, error) {
	var l models.Layer
	if err := getJSON(txn, layerKey(layerID), &l); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.LayerNotFound(layerID)
		}
		return nil, err
	}
	return &l, nil
}

func loadFeatures(txn *badger.Txn, layerID string) ([]*models.Feature, error) {
	return scan[*models.Feature](txn, featurePrefix(layerID))
}

// GetLayer returns a layer with its features.
func (c *Connector) GetLayer(_ context.Context, layerID string, _ models.Meta, cb models.Callback) {
	var l *models.Layer
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		if l, err = loadLayer(txn, layerID); err != nil {
			return err
		}
		l.Features, err = loadFeatures(txn, layerID)
		return err
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	if l.Features == nil {
		l.Features = []*models.Feature{}
	}
	models.SortFeatures(l.Features)
	cb(&models.CallbackResult{Result: models.ResultOK, Layer: l})
}

// UpdateLayer replaces a layer's metadata, creating it when absent. Stored
// features are replaced only when the update carries features.
func (c *Connector) UpdateLayer(_ context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	err := c.db.Update(func(txn *badger.Txn) error {
		if len(l.Features) > 0 {
			if err := deletePrefix(txn, featurePrefix(l.ID)); err != nil {
				return err
			}
		}
		return putLayer(txn, l)
	})
	storage.Reply(cb, err)
}

// DeleteLayer removes a layer and its features.
func (c *Connector) DeleteLayer(_ context.Context, layerID string, _ models.Meta, cb models.Callback) {
	err := c.db.Update(func(txn *badger.Txn) error {
		if _, err := loadLayer(txn, layerID); err != nil {
			return err
		}
		if err := deletePrefix(txn, featurePrefix(layerID)); err != nil {
			return err
		}
		return txn.Delete(layerKey(layerID))
	})
	storage.Reply(cb, err)
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
	err := c.db.Update(func(txn *badger.Txn) error {
		if _, err := loadLayer(txn, layerID); err != nil {
			return err
		}
		return setJSON(txn, featureKey(layerID, f.ID), f)
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: f})
}

func loadFeature(txn *badger.Txn, layerID, featureID string) (*models.Feature, error) {
	if _, err := loadLayer(txn, layerID); err != nil {
		return nil, err
	}
	var f models.Feature
	if err := getJSON(txn, featureKey(layerID, featureID), &f); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.FeatureNotFound(layerID, featureID)
		}
		return nil, err
	}
	return &f, nil
}

// GetFeature returns one feature.
func (c *Connector) GetFeature(_ context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	var f *models.Feature
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		f, err = loadFeature(txn, layerID, featureID)
		return err
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: f})
}

// UpdateFeature writes a feature over the stored one, creating it when absent.
func (c *Connector) UpdateFeature(_ context.Context, layerID string, f *models.Feature, useLog bool, meta models.Meta, cb models.Callback) {
	now := c.now().UnixMilli()
	var next *models.Feature
	err := c.db.Update(func(txn *badger.Txn) error {
		existing, err := loadFeature(txn, layerID, f.ID)
		if err != nil && !errors.Is(err, models.ErrFeatureNotFound) {
			return err
		}
		next = storage.ApplyUpdate(existing, f, useLog, meta.User, now)
		return setJSON(txn, featureKey(layerID, f.ID), next)
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: next})
}

// DeleteFeature removes one feature.
func (c *Connector) DeleteFeature(_ context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	err := c.db.Update(func(txn *badger.Txn) error {
		if _, err := loadFeature(txn, layerID, featureID); err != nil {
			return err
		}
		return txn.Delete(featureKey(layerID, featureID))
	})
	storage.Reply(cb, err)
}

// mutate applies fn to a stored feature inside one transaction.
func (c *Connector) mutate(layerID, featureID string, fn func(f *models.Feature) error) error {
	return c.db.Update(func(txn *badger.Txn) error {
		f, err := loadFeature(txn, layerID, featureID)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
		return setJSON(txn, featureKey(layerID, featureID), f)
	})
}

// AddLog appends one log entry.
func (c *Connector) AddLog(_ context.Context, layerID, featureID, property string, log models.Log, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.mutate(layerID, featureID, func(f *models.Feature) error {
		storage.MergeLogs(f, map[string][]models.Log{property: {log}})
		return nil
	}))
}

// GetLog returns a feature's logs.
func (c *Connector) GetLog(_ context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	var f *models.Feature
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		f, err = loadFeature(txn, layerID, featureID)
		return err
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	logs := f.Logs
	if logs == nil {
		logs = map[string][]models.Log{}
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Logs: logs})
}

// DeleteLog removes the entries of a property with the given timestamp.
func (c *Connector) DeleteLog(_ context.Context, layerID, featureID string, ts int64, property string, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.mutate(layerID, featureID, func(f *models.Feature) error {
		if !storage.DeleteLog(f, ts, property) {
			return &models.CodeError{Code: models.ResultError, Message: fmt.Sprintf("no %s log at %d", property, ts)}
		}
		return nil
	}))
}

// UpdateLogs merges log entries into a feature.
func (c *Connector) UpdateLogs(_ context.Context, layerID, featureID string, logs map[string][]models.Log, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.mutate(layerID, featureID, func(f *models.Feature) error {
		storage.MergeLogs(f, logs)
		return nil
	}))
}

// UpdateProperty sets one property of a feature.
func (c *Connector) UpdateProperty(_ context.Context, layerID, featureID, property string, value any, useLog bool, meta models.Meta, cb models.Callback) {
	now := c.now().UnixMilli()
	storage.Reply(cb, c.mutate(layerID, featureID, func(f *models.Feature) error {
		storage.SetProperty(f, property, value, useLog, meta.User, now)
		return nil
	}))
}

func (c *Connector) query(layerID string, q storage.Query, cb models.Callback) {
	var features []*models.Feature
	err := c.db.View(func(txn *badger.Txn) error {
		if _, err := loadLayer(txn, layerID); err != nil {
			return err
		}
		all, err := loadFeatures(txn, layerID)
		if err != nil {
			return err
		}
		features = storage.Filter(all, q)
		return nil
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Features: features})
}

// GetBBox returns the features anchored inside a bounding box.
func (c *Connector) GetBBox(_ context.Context, layerID string, southWest, northEast []float64, _ models.Meta, cb models.Callback) {
	q, err := storage.NewBBoxQuery(southWest, northEast)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	c.query(layerID, q, cb)
}

// GetSphere returns the features anchored within maxDistance meters.
func (c *Connector) GetSphere(_ context.Context, layerID string, maxDistance, lng, lat float64, _ models.Meta, cb models.Callback) {
	q, err := storage.NewSphereQuery(maxDistance, lng, lat)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	c.query(layerID, q, cb)
}

// GetWithinPolygon returns the features anchored inside a polygon.
func (c *Connector) GetWithinPolygon(_ context.Context, layerID string, polygon *models.Feature, _ models.Meta, cb models.Callback) {
	q, err := storage.NewPolygonQuery(polygon)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	c.query(layerID, q, cb)
}
