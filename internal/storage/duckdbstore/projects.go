// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package duckdbstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

type keyRecord struct {
	Key   *models.Key     `json:"key"`
	Value models.KeyValue `json:"value,omitempty"`
}

// AddProject stores a project.
func (c *Connector) AddProject(ctx context.Context, p *models.Project, _ models.Meta, cb models.Callback) {
	err := c.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := rowExists(ctx, tx, tableProjects, p.ID)
		if err != nil {
			return err
		}
		if ok {
			return storage.ProjectExists(p.ID)
		}
		return putDoc(ctx, tx, tableProjects, p.ID, p)
	})
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Project: p.Clone()})
}

// DeleteProject removes a project.
func (c *Connector) DeleteProject(ctx context.Context, projectID string, _ models.Meta, cb models.Callback) {
	res, err := c.conn.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID)
	if err != nil {
		storage.Reply(cb, fmt.Errorf("delete project: %w", err))
		return
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		storage.Reply(cb, storage.ProjectNotFound(projectID))
		return
	}
	cb(models.OK())
}

// GetKey returns a key and its last value.
func (c *Connector) GetKey(ctx context.Context, keyID string, _ models.Meta, cb models.Callback) {
	var rec keyRecord
	if err := getDoc(ctx, c.conn, tableKeys, keyID, &rec); err != nil {
		if isNoRows(err) {
			err = storage.KeyNotFound(keyID)
		}
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: map[string]*models.Key{keyID: rec.Key}, Value: rec.Value})
}

// GetKeys returns every stored key.
func (c *Connector) GetKeys(ctx context.Context, _ models.Meta, cb models.Callback) {
	rows, err := c.conn.QueryContext(ctx, "SELECT doc FROM key_values ORDER BY id")
	if err != nil {
		storage.Reply(cb, fmt.Errorf("query keys: %w", err))
		return
	}
	defer rows.Close()

	keys := map[string]*models.Key{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			storage.Reply(cb, fmt.Errorf("scan key: %w", err))
			return
		}
		var rec keyRecord
		if err := json.Unmarshal([]byte(doc), &rec); err == nil && rec.Key != nil {
			keys[rec.Key.ID] = rec.Key
		}
	}
	if err := rows.Err(); err != nil {
		storage.Reply(cb, fmt.Errorf("iterate keys: %w", err))
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: keys})
}

// UpdateKey stores a key value, creating the key when needed.
func (c *Connector) UpdateKey(ctx context.Context, keyID string, value models.KeyValue, _ models.Meta, cb models.Callback) {
	storage.Reply(cb, c.inTx(ctx, func(tx *sql.Tx) error {
		var rec keyRecord
		if err := getDoc(ctx, tx, tableKeys, keyID, &rec); err != nil && !isNoRows(err) {
			return fmt.Errorf("load key %s: %w", keyID, err)
		}
		if rec.Key == nil {
			rec.Key = &models.Key{ID: keyID, Title: keyID, Storage: c.ID()}
		}
		rec.Value = value
		return putDoc(ctx, tx, tableKeys, keyID, rec)
	}))
}

// DeleteKey removes a key.
func (c *Connector) DeleteKey(ctx context.Context, keyID string, _ models.Meta, cb models.Callback) {
	res, err := c.conn.ExecContext(ctx, "DELETE FROM key_values WHERE id = ?", keyID)
	if err != nil {
		storage.Reply(cb, fmt.Errorf("delete key: %w", err))
		return
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		storage.Reply(cb, storage.KeyNotFound(keyID))
		return
	}
	cb(models.OK())
}
