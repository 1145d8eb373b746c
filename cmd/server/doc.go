// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package main is the entry point for the Layersync server.
//
// Layersync keeps map layers, features, projects and shared key values in
// sync between storage backends and connected clients. Every change is
// dispatched by the manager to the owning storage connector and then
// fanned out to the interface connectors (WebSocket clients and the NATS
// message bus).
//
// # Startup Order
//
//  1. Configuration: defaults, config.yaml and environment variables (Koanf v2)
//  2. Manager: load layers.json, projects.json and the resource catalog
//  3. Storages: memory plus the enabled file, BadgerDB, DuckDB and Redis connectors
//  4. Keys: merge the keys each storage reports into the key directory
//  5. Interfaces: WebSocket hub and, optionally, the NATS bus connector
//  6. Authentication: none, JWT or Basic Auth
//  7. Supervisor tree: data, messaging and API layers
//
// # Usage
//
// Development with defaults (port 3002, no authentication):
//
//	./layersync
//
// Production with JWT and persistent storage:
//
//	export AUTH_MODE=jwt
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export BADGER_ENABLED=true
//	export LAYERSYNC_DEFAULT_STORAGE=badger
//	./layersync
//
// Print a token for a user:
//
//	./layersync -token alice -role editor
//
// Two instances sharing changes over an embedded NATS server:
//
//	export NATS_ENABLED=true
//	export NATS_EMBEDDED=true
//	./layersync
//
// # Shutdown
//
// SIGINT or SIGTERM cancels the root context. The HTTP server drains, the
// directories are flushed to disk and the storage connectors are closed.
package main
