// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package duckdbstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

const (
	tableLayers   = "layers"
	tableProjects = "projects"
	tableKeys     = "key_values"
)

func loadLayer(ctx context.Context, q queryer, layerID string) (*models.Layer, error) {
	var l models.Layer
	if err := getDoc(ctx, q, tableLayers, layerID, &l); err != nil {
		if isNoRows(err) {
			return nil, storage.LayerNotFound(layerID)
		}
		return nil, fmt.Errorf("load layer %s: %w", layerID, err)
	}
	return &l, nil
}

func putLayer(ctx context.Context, q queryer, l *models.Layer) error {
	if err := putDoc(ctx, q, tableLayers, l.ID, l.WithoutFeatures()); err != nil {
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
		if err := putFeature(ctx, q, l.ID, f); err != nil {
			return err
		}
	}
	return nil
}

// AddLayer stores a new layer and its features.
func (c *Connector) AddLayer(ctx context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	err := c.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := rowExists(ctx, tx, tableLayers, l.ID)
		if err != nil {
			return err
		}
		if ok {
			return storage.LayerExists(l.ID)
		}
		return putLayer(ctx, tx, l)
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Layer: l.WithoutFeatures()})
}

// GetLayer returns a layer with its features.
func (c *Connector) GetLayer(ctx context.Context, layerID string, _ models.Meta, cb models.Callback) {
	l, err := loadLayer(ctx, c.conn, layerID)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	rows, err := c.conn.QueryContext(ctx, "SELECT doc FROM features WHERE layer_id = ? ORDER BY id", layerID)
	if err != nil {
		storage.Reply(cb, fmt.Errorf("query features: %w", err))
		return
	}
	if l.Features, err = scanFeatures(rows); err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Layer: l})
}

// UpdateLayer replaces a layer's metadata, creating it when absent. Stored
// features are replaced only when the update carries features.
func (c *Connector) UpdateLayer(ctx context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.inTx(ctx, func(tx *sql.Tx) error {
		if len(l.Features) > 0 {
			if _, err := tx.ExecContext(ctx, "DELETE FROM features WHERE layer_id = ?", l.ID); err != nil {
				return fmt.Errorf("clear features: %w", err)
			}
		}
		return putLayer(ctx, tx, l)
	}))
}

// DeleteLayer removes a layer and its features.
func (c *Connector) DeleteLayer(ctx context.Context, layerID string, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadLayer(ctx, tx, layerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM features WHERE layer_id = ?", layerID); err != nil {
			return fmt.Errorf("delete features: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM layers WHERE id = ?", layerID); err != nil {
			return fmt.Errorf("delete layer: %w", err)
		}
		return nil
	}))
}

func loadFeature(ctx context.Context, q queryer, layerID, featureID string) (*models.Feature, error) {
	if _, err := loadLayer(ctx, q, layerID); err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, "SELECT doc FROM features WHERE layer_id = ? AND id = ?", layerID, featureID)
	if err != nil {
		return nil, fmt.Errorf("query feature: %w", err)
	}
	features, err := scanFeatures(rows)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, storage.FeatureNotFound(layerID, featureID)
	}
	return features[0], nil
}

// AddFeature stores a feature, replacing one with the same id.
func (c *Connector) AddFeature(ctx context.Context, layerID string, f *models.Feature, _ models.Meta, cb models.Callback) {
	f = f.Clone()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Type == "" {
		f.Type = models.FeatureType
	}
	err := c.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadLayer(ctx, tx, layerID); err != nil {
			return err
		}
		return putFeature(ctx, tx, layerID, f)
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: f})
}

// GetFeature returns one feature.
func (c *Connector) GetFeature(ctx context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	f, err := loadFeature(ctx, c.conn, layerID, featureID)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: f})
}

// UpdateFeature writes a feature over the stored one, creating it when absent.
func (c *Connector) UpdateFeature(ctx context.Context, layerID string, f *models.Feature, useLog bool, meta models.Meta, cb models.Callback) {
	now := c.now().UnixMilli()
	var next *models.Feature
	err := c.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := loadFeature(ctx, tx, layerID, f.ID)
		if err != nil && !errors.Is(err, models.ErrFeatureNotFound) {
			return err
		}
		next = storage.ApplyUpdate(existing, f, useLog, meta.User, now)
		return putFeature(ctx, tx, layerID, next)
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: next})
}

// DeleteFeature removes one feature.
func (c *Connector) DeleteFeature(ctx context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadFeature(ctx, tx, layerID, featureID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM features WHERE layer_id = ? AND id = ?", layerID, featureID)
		if err != nil {
			return fmt.Errorf("delete feature: %w", err)
		}
		return nil
	}))
}

func (c *Connector) mutate(ctx context.Context, layerID, featureID string, fn func(f *models.Feature) error) error {
	return c.inTx(ctx, func(tx *sql.Tx) error {
		f, err := loadFeature(ctx, tx, layerID, featureID)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
		return putFeature(ctx, tx, layerID, f)
	})
}

// AddLog appends one log entry.
func (c *Connector) AddLog(ctx context.Context, layerID, featureID, property string, log models.Log, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.mutate(ctx, layerID, featureID, func(f *models.Feature) error {
		storage.MergeLogs(f, map[string][]models.Log{property: {log}})
		return nil
	}))
}

// GetLog returns a feature's logs.
func (c *Connector) GetLog(ctx context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	f, err := loadFeature(ctx, c.conn, layerID, featureID)
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
func (c *Connector) DeleteLog(ctx context.Context, layerID, featureID string, ts int64, property string, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.mutate(ctx, layerID, featureID, func(f *models.Feature) error {
		if !storage.DeleteLog(f, ts, property) {
			return &models.CodeError{Code: models.ResultError, Message: fmt.Sprintf("no %s log at %d", property, ts)}
		}
		return nil
	}))
}

// UpdateLogs merges log entries into a feature.
func (c *Connector) UpdateLogs(ctx context.Context, layerID, featureID string, logs map[string][]models.Log, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.mutate(ctx, layerID, featureID, func(f *models.Feature) error {
		storage.MergeLogs(f, logs)
		return nil
	}))
}

// UpdateProperty sets one property of a feature.
func (c *Connector) UpdateProperty(ctx context.Context, layerID, featureID, property string, value any, useLog bool, meta models.Meta, cb models.Callback) {
	now := c.now().UnixMilli()
	storage.Reply(cb, c.mutate(ctx, layerID, featureID, func(f *models.Feature) error {
		storage.SetProperty(f, property, value, useLog, meta.User, now)
		return nil
	}))
}
