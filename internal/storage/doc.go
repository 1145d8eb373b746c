// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package storage holds the feature content rules shared by the storage
connectors in its subpackages.

The connectors differ in where layers live (process memory, JSON files,
Badger, DuckDB) but agree on what a mutation means:

  - ApplyUpdate replaces a feature and, when change logging is on, appends a
    log entry for every property whose value changed.
  - MergeLogs folds per-property log entries into a feature, keeps each
    property's log ordered by timestamp and sets the property to the newest
    value.
  - SetProperty and DeleteLog are the single-property forms.

Geospatial queries (BBoxQuery, SphereQuery, PolygonQuery) match a feature by
its anchor point: the position of a Point geometry or the mean of the
positions of any other geometry. Sphere distances are in meters.

Failures are reported as *models.CodeError values so connectors can turn
them into callback results with Reply.
*/
package storage
