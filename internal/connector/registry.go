// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package connector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
)

var (
	// ErrDuplicateConnector is returned when an id is registered twice.
	ErrDuplicateConnector = errors.New("connector already registered")
	// ErrEmptyConnectorID is returned when a connector is registered without an id.
	ErrEmptyConnectorID = errors.New("connector id is required")
)

// Registry holds the connectors keyed by id. Lookups are safe for concurrent
// use; iteration order is always by id so fan-out is deterministic.
type Registry struct {
	mu             sync.RWMutex
	connectors     map[string]Connector
	defaultStorage string
}

// NewRegistry creates an empty registry. defaultStorage names the storage
// connector used for entities without a storage field.
func NewRegistry(defaultStorage string) *Registry {
	return &Registry{
		connectors:     make(map[string]Connector),
		defaultStorage: defaultStorage,
	}
}

// Add assigns the id, initializes the connector with the dispatcher and
// options, and registers it. A connector whose Init fails is not registered.
func (r *Registry) Add(id string, c Connector, d Dispatcher, opts Options) error {
	if id == "" {
		return ErrEmptyConnectorID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connectors[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConnector, id)
	}

	c.SetID(id)
	if opts == nil {
		opts = Options{}
	}
	if err := c.Init(d, opts); err != nil {
		return fmt.Errorf("init connector %s: %w", id, err)
	}
	r.connectors[id] = c

	logging.Info().
		Str("connector", id).
		Str("role", c.Role().String()).
		Bool("receive_copy", c.ReceiveCopy()).
		Msg("Connector registered")
	return nil
}

// Get returns the connector registered under id, or nil.
func (r *Registry) Get(id string) Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectors[id]
}

// DefaultStorage returns the default storage connector id.
func (r *Registry) DefaultStorage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultStorage
}

// SetDefaultStorage changes the default storage connector id.
func (r *Registry) SetDefaultStorage(id string) {
	r.mu.Lock()
	r.defaultStorage = id
	r.mu.Unlock()
}

// Resolve returns the connector named by an entity's storage field, or the
// default storage connector when the field is empty. It returns nil when
// neither is registered.
func (r *Registry) Resolve(storage string) Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if storage == "" {
		storage = r.defaultStorage
	}
	return r.connectors[storage]
}

// All returns every connector ordered by id.
func (r *Registry) All() []Connector {
	return r.filter(func(Connector) bool { return true })
}

// Storages returns every storage connector ordered by id.
func (r *Registry) Storages() []Connector {
	return r.filter(func(c Connector) bool { return !c.IsInterface() })
}

// Interfaces returns the interface connectors that should be notified of a
// change described by meta: every interface connector except the one the
// change came from, unless that connector asked to receive copies.
func (r *Registry) Interfaces(meta models.Meta) []Connector {
	return r.filter(func(c Connector) bool {
		return c.IsInterface() && (c.ReceiveCopy() || meta.Source != c.ID())
	})
}

func (r *Registry) filter(keep func(Connector) bool) []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.connectors))
	for id, c := range r.connectors {
		if keep(c) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]Connector, len(ids))
	for i, id := range ids {
		out[i] = r.connectors[id]
	}
	return out
}
