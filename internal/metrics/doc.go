// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package metrics provides Prometheus instrumentation for layersync.

All collectors are registered with the default registry through promauto and
exported by the HTTP server on /metrics.

# Overview

The package provides metrics for:
  - Manager dispatch results per operation
  - Interface connector fan-out deliveries and failures
  - Directory sizes and directory file writes
  - Storage connector operation latency
  - Message bus publishes, receipts and circuit breaker state
  - WebSocket connections and messages
  - HTTP request latency and throughput

# Usage

Components call the Record helpers rather than touching collectors directly:

	metrics.RecordDispatch("addLayer", models.ResultOK.String())
	metrics.RecordFanOut("ws", "updateFeature", true)
	metrics.RecordStorageOp("duckdb", "getBBox", time.Since(start), err)
*/
package metrics
