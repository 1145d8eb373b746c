// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package services adapts layersync components to suture.Service.
//
//   - HTTPServerService runs an *http.Server and shuts it down gracefully.
//   - ServeService runs anything with a Serve(ctx) error method, such as the
//     WebSocket and bus connectors.
//   - ShutdownService idles until shutdown and then runs cleanup functions,
//     such as flushing the manager's directories and closing storages.
//
// Every service implements fmt.Stringer so suture logs it by name.
package services
