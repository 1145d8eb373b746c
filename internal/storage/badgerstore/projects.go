// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package badgerstore

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

// keyRecord is the stored form of a key and its last value.
type keyRecord struct {
	Key   *models.Key     `json:"key"`
	Value models.KeyValue `json:"value,omitempty"`
}

// AddProject stores a project.
func (c *Connector) AddProject(_ context.Context, p *models.Project, _ models.Meta, cb models.Callback) {
	err := c.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, projectKey(p.ID))
		if err != nil {
			return err
		}
		if ok {
			return storage.ProjectExists(p.ID)
		}
		return setJSON(txn, projectKey(p.ID), p)
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Project: p.Clone()})
}

// DeleteProject removes a project.
func (c *Connector) DeleteProject(_ context.Context, projectID string, _ models.Meta, cb models.Callback) {
	err := c.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, projectKey(projectID))
		if err != nil {
			return err
		}
		if !ok {
			return storage.ProjectNotFound(projectID)
		}
		return txn.Delete(projectKey(projectID))
	})
	storage.Reply(cb, err)
}

// GetKey returns a key and its last value.
func (c *Connector) GetKey(_ context.Context, keyID string, _ models.Meta, cb models.Callback) {
	var rec keyRecord
	err := c.db.View(func(txn *badger.Txn) error {
		err := getJSON(txn, keyKey(keyID), &rec)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.KeyNotFound(keyID)
		}
		return err
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: map[string]*models.Key{keyID: rec.Key}, Value: rec.Value})
}

// GetKeys returns every stored key.
func (c *Connector) GetKeys(_ context.Context, _ models.Meta, cb models.Callback) {
	var recs []keyRecord
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		recs, err = scan[keyRecord](txn, []byte(prefixKey))
		return err
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	keys := make(map[string]*models.Key, len(recs))
	for _, r := range recs {
		if r.Key != nil {
			keys[r.Key.ID] = r.Key
		}
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: keys})
}

// UpdateKey stores a key value, creating the key when needed.
func (c *Connector) UpdateKey(_ context.Context, keyID string, value models.KeyValue, _ models.Meta, cb models.Callback) {
	err := c.db.Update(func(txn *badger.Txn) error {
		var rec keyRecord
		err := getJSON(txn, keyKey(keyID), &rec)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if rec.Key == nil {
			rec.Key = &models.Key{ID: keyID, Title: keyID, Storage: c.ID()}
		}
		rec.Value = value
		return setJSON(txn, keyKey(keyID), rec)
	})
	storage.Reply(cb, err)
}

// DeleteKey removes a key.
func (c *Connector) DeleteKey(_ context.Context, keyID string, _ models.Meta, cb models.Callback) {
	err := c.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, keyKey(keyID))
		if err != nil {
			return err
		}
		if !ok {
			return storage.KeyNotFound(keyID)
		}
		return txn.Delete(keyKey(keyID))
	})
	storage.Reply(cb, err)
}
