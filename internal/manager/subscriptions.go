// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package manager

import (
	"maps"
	"path"
	"sync"

	"github.com/tomtom215/layersync/internal/models"
)

type keySubscription struct {
	pattern string
	cb      models.Callback
}

// subscriptions tracks in-process key watchers.
type subscriptions struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*keySubscription
}

func newSubscriptions() *subscriptions {
	return &subscriptions{subs: make(map[uint64]*keySubscription)}
}

func (s *subscriptions) add(pattern string, cb models.Callback) (cancel func()) {
	s.mu.Lock()
	s.next++
	id := s.next
	s.subs[id] = &keySubscription{pattern: pattern, cb: cb}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *subscriptions) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *subscriptions) notify(key *models.Key, value models.KeyValue) {
	s.mu.RLock()
	var matched []models.Callback
	for _, sub := range s.subs {
		if ok, _ := path.Match(sub.pattern, key.ID); ok {
			matched = append(matched, sub.cb)
		}
	}
	s.mu.RUnlock()

	for _, cb := range matched {
		cb(&models.CallbackResult{
			Result: models.ResultOK,
			Keys:   map[string]*models.Key{key.ID: key.Clone()},
			Value:  maps.Clone(value),
		})
	}
}
