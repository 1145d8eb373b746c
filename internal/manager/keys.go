// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package manager

import (
	"context"
	"maps"
	"path"
	"sync"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
	"github.com/tomtom215/layersync/internal/models"
)

// FindKey returns a copy of the key directory entry, or nil.
func (m *Manager) FindKey(keyID string) *models.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keys[keyID].Clone()
}

// Keys returns a copy of the key directory.
func (m *Manager) Keys() map[string]*models.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*models.Key, len(m.keys))
	for id, k := range m.keys {
		out[id] = k.Clone()
	}
	return out
}

// AddKey creates a key entry titled with its id if it does not exist and
// returns the entry.
func (m *Manager) AddKey(keyID string) *models.Key {
	m.mu.Lock()
	k, ok := m.keys[keyID]
	if !ok {
		k = &models.Key{ID: keyID, Title: keyID, Storage: m.cfg.KeyStorage}
		m.keys[keyID] = k
	}
	c := k.Clone()
	m.mu.Unlock()
	if !ok {
		m.updateSizes()
	}
	return c
}

// SyncKeys rebuilds the key directory from every storage connector that
// supports keys. Connectors that do not are skipped.
func (m *Manager) SyncKeys(ctx context.Context) {
	for _, s := range m.registry.Storages() {
		var wg sync.WaitGroup
		wg.Add(1)
		storageID := s.ID()
		s.GetKeys(ctx, models.Meta{Source: "manager"}, func(res *models.CallbackResult) {
			defer wg.Done()
			if !res.IsOK() {
				return
			}
			m.mu.Lock()
			for id, k := range res.Keys {
				if _, exists := m.keys[id]; exists || k == nil {
					continue
				}
				c := k.Clone()
				if c.Storage == "" {
					c.Storage = storageID
				}
				m.keys[id] = c
			}
			m.mu.Unlock()
		})
		wg.Wait()
	}
	m.updateSizes()
}

// UpdateKey writes a key value. The key is created on first write, and a value
// without a "time" field is stamped with the current time. The caller is
// always answered with ResultOK; storage failures are logged and an update
// with no storage connector is counted.
func (m *Manager) UpdateKey(ctx context.Context, keyID string, value models.KeyValue, meta models.Meta, cb models.Callback) {
	cb = m.observe("updateKey", cb)
	if keyID == "" {
		cb(models.Failure(models.ResultError, "key id is required"))
		return
	}

	key := m.AddKey(keyID)
	value = value.Clone()
	if value == nil {
		value = models.KeyValue{}
	}
	if _, ok := value[models.KeyTimeField]; !ok {
		value[models.KeyTimeField] = m.stamp()
	}

	if s := m.registry.Resolve(key.Storage); s != nil {
		s.UpdateKey(ctx, keyID, value, meta, timed(s, "updateKey", func(res *models.CallbackResult) {
			if !res.IsOK() {
				logging.CtxWarn(ctx).Str("key", keyID).Str("error", res.Error).Msg("Storage rejected key update")
			}
		}))
	} else {
		metrics.RecordUnpersistedKey()
		logging.CtxDebug(ctx).Str("key", keyID).Msg("No storage for key, value not persisted")
	}

	m.notifyInterfaces("updateKey", meta, func(c connector.Connector, done models.Callback) {
		c.UpdateKey(ctx, keyID, value, meta, done)
	})
	m.subs.notify(key, value)

	cb(&models.CallbackResult{Result: models.ResultOK, Keys: map[string]*models.Key{keyID: key}, Value: maps.Clone(value)})
}

// GetKey returns a key's entry and, when its storage holds one, its value.
func (m *Manager) GetKey(ctx context.Context, keyID string, meta models.Meta, cb models.Callback) {
	cb = m.observe("getKey", cb)
	key := m.FindKey(keyID)
	if key == nil {
		cb(models.Failuref(models.ResultError, "key %s not found", keyID))
		return
	}
	s := m.registry.Resolve(key.Storage)
	if s == nil {
		cb(&models.CallbackResult{Result: models.ResultOK, Keys: map[string]*models.Key{keyID: key}})
		return
	}
	s.GetKey(ctx, keyID, meta, timed(s, "getKey", func(res *models.CallbackResult) {
		if res.Keys == nil {
			res.Keys = map[string]*models.Key{keyID: key}
		}
		cb(res)
	}))
}

// GetKeys returns the key directory.
func (m *Manager) GetKeys(_ context.Context, _ models.Meta, cb models.Callback) {
	cb = m.observe("getKeys", cb)
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: m.Keys()})
}

// DeleteKey removes a key from the directory and its storage.
func (m *Manager) DeleteKey(ctx context.Context, keyID string, meta models.Meta, cb models.Callback) {
	cb = m.observe("deleteKey", cb)
	s := m.FindStorageForKeyID(keyID)

	m.mu.Lock()
	_, existed := m.keys[keyID]
	delete(m.keys, keyID)
	m.mu.Unlock()
	if !existed {
		cb(models.Failuref(models.ResultError, "key %s not found", keyID))
		return
	}
	m.updateSizes()

	m.notifyInterfaces("deleteKey", meta, func(c connector.Connector, done models.Callback) {
		c.DeleteKey(ctx, keyID, meta, done)
	})

	if s == nil {
		cb(models.OK())
		return
	}
	s.DeleteKey(ctx, keyID, meta, timed(s, "deleteKey", cb))
}

// SubscribeKey calls cb with every value written to a key whose id matches
// pattern (path.Match syntax) until ctx ends. Unlike other operations the
// callback fires once per matching write; an invalid pattern is reported once
// with ResultError. When the key storage publishes keys itself the
// subscription is handed to it.
func (m *Manager) SubscribeKey(ctx context.Context, pattern string, meta models.Meta, cb models.Callback) {
	if cb == nil {
		return
	}
	if _, err := path.Match(pattern, ""); err != nil {
		cb(models.Failuref(models.ResultError, "invalid key pattern %q", pattern))
		return
	}
	if s := m.registry.Resolve(m.cfg.KeyStorage); s != nil {
		if kp, ok := s.(connector.KeyPublisher); ok && kp.PublishesKeys() {
			s.SubscribeKey(ctx, pattern, meta, cb)
			return
		}
	}
	cancel := m.subs.add(pattern, cb)
	go func() {
		<-ctx.Done()
		cancel()
	}()
}
