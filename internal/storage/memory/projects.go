// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package memory

import (
	"context"
	"maps"

	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

// AddProject stores a project.
func (c *Connector) AddProject(_ context.Context, p *models.Project, _ models.Meta, cb models.Callback) {
	c.mu.Lock()
	if _, exists := c.projects[p.ID]; exists {
		c.mu.Unlock()
		storage.Reply(cb, storage.ProjectExists(p.ID))
		return
	}
	c.projects[p.ID] = p.Clone()
	c.mu.Unlock()

	c.changed(ChangeProject, p.ID, false)
	cb(&models.CallbackResult{Result: models.ResultOK, Project: p.Clone()})
}

// DeleteProject removes a project.
func (c *Connector) DeleteProject(_ context.Context, projectID string, _ models.Meta, cb models.Callback) {
	c.mu.Lock()
	_, ok := c.projects[projectID]
	delete(c.projects, projectID)
	c.mu.Unlock()

	if !ok {
		storage.Reply(cb, storage.ProjectNotFound(projectID))
		return
	}
	c.changed(ChangeProject, projectID, true)
	cb(models.OK())
}

// Projects returns copies of the stored projects.
func (c *Connector) Projects() map[string]*models.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*models.Project, len(c.projects))
	for id, p := range c.projects {
		out[id] = p.Clone()
	}
	return out
}

// RestoreProject loads a project without notifying the observer.
func (c *Connector) RestoreProject(p *models.Project) {
	c.mu.Lock()
	c.projects[p.ID] = p.Clone()
	c.mu.Unlock()
}

// GetKey returns a key and its current value.
func (c *Connector) GetKey(_ context.Context, keyID string, _ models.Meta, cb models.Callback) {
	c.mu.RLock()
	k := c.keys[keyID].Clone()
	v := maps.Clone(c.values[keyID])
	c.mu.RUnlock()

	if k == nil {
		storage.Reply(cb, storage.KeyNotFound(keyID))
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: map[string]*models.Key{keyID: k}, Value: v})
}

// GetKeys returns every stored key.
func (c *Connector) GetKeys(_ context.Context, _ models.Meta, cb models.Callback) {
	c.mu.RLock()
	keys := make(map[string]*models.Key, len(c.keys))
	for id, k := range c.keys {
		keys[id] = k.Clone()
	}
	c.mu.RUnlock()
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: keys})
}

// UpdateKey stores a key value, creating the key when needed.
func (c *Connector) UpdateKey(_ context.Context, keyID string, value models.KeyValue, _ models.Meta, cb models.Callback) {
	c.RestoreKey(&models.Key{ID: keyID, Title: keyID, Storage: c.ID()}, value)
	c.changed(ChangeKey, keyID, false)
	cb(models.OK())
}

// DeleteKey removes a key and its value.
func (c *Connector) DeleteKey(_ context.Context, keyID string, _ models.Meta, cb models.Callback) {
	c.mu.Lock()
	_, ok := c.keys[keyID]
	delete(c.keys, keyID)
	delete(c.values, keyID)
	c.mu.Unlock()

	if !ok {
		storage.Reply(cb, storage.KeyNotFound(keyID))
		return
	}
	c.changed(ChangeKey, keyID, true)
	cb(models.OK())
}

// KeyEntry is a key with its value, as exported by Keys.
type KeyEntry struct {
	Key   *models.Key     `json:"key"`
	Value models.KeyValue `json:"value,omitempty"`
}

// Keys returns copies of every key and value.
func (c *Connector) Keys() map[string]KeyEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]KeyEntry, len(c.keys))
	for id, k := range c.keys {
		out[id] = KeyEntry{Key: k.Clone(), Value: maps.Clone(c.values[id])}
	}
	return out
}

// RestoreKey stores a key and value without notifying the observer. An
// existing key keeps its title.
func (c *Connector) RestoreKey(k *models.Key, value models.KeyValue) {
	c.mu.Lock()
	if _, ok := c.keys[k.ID]; !ok {
		c.keys[k.ID] = k.Clone()
	}
	c.values[k.ID] = maps.Clone(value)
	c.mu.Unlock()
}
