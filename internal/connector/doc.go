// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package connector defines the contract every pluggable backend implements and
the registry the manager uses to route requests to them.

A connector plays one of two roles:

  - Storage: authoritative persistence for the layers, projects and keys whose
    storage field names it. Its callbacks determine the result the caller sees.
  - Interface: an outward channel (WebSocket clients, a message bus) that is
    notified of every mutation. Interface callbacks never affect the caller.

Embedding Base gives a connector a default no-op implementation of every
operation, so a connector only overrides what it supports:

	type Connector struct {
	    connector.Base
	}

	func New() *Connector {
	    return &Connector{Base: connector.NewBase(connector.RoleInterface, false)}
	}

	func (c *Connector) UpdateFeature(ctx context.Context, layerID string, f *models.Feature,
	    useLog bool, meta models.Meta, cb models.Callback) {
	    // push to clients
	    connector.Complete(cb, models.OK())
	}

Routing:

The Registry keeps connectors keyed by id. Resolve maps an entity's storage
field to its storage connector, falling back to the default storage id.
Interfaces returns the interface connectors that should see a change, which
excludes the connector the change came from unless it opted into copies.

Fan-out:

FanOut invokes an operation on a set of interface connectors. Failures are
logged and counted but never returned to the caller; a broken client channel
must not fail a write that storage accepted.
*/
package connector
