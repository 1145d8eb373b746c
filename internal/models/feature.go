// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package models

import (
	"maps"
	"sort"

	"github.com/goccy/go-json"
)

// FeatureType is the GeoJSON type every feature carries.
const FeatureType = "Feature"

// Geometry is a GeoJSON geometry. Coordinates are kept as raw JSON because
// their nesting depth depends on the geometry type.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Log is one timestamped change of a feature property. TS is milliseconds
// since the Unix epoch.
type Log struct {
	TS    int64  `json:"ts"`
	Prop  string `json:"prop,omitempty"`
	Value any    `json:"value"`
	User  string `json:"user,omitempty"`
}

// Feature is a GeoJSON feature extended with per-property change logs.
type Feature struct {
	ID         string           `json:"id"`
	Type       string           `json:"type,omitempty"`
	Geometry   *Geometry        `json:"geometry,omitempty"`
	Properties map[string]any   `json:"properties,omitempty"`
	Logs       map[string][]Log `json:"logs,omitempty"`
}

// Clone returns a deep copy of the feature. Property values are copied by
// reference; they are treated as immutable JSON values.
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	c := *f
	if f.Geometry != nil {
		g := *f.Geometry
		g.Coordinates = append(json.RawMessage(nil), f.Geometry.Coordinates...)
		c.Geometry = &g
	}
	if f.Properties != nil {
		c.Properties = maps.Clone(f.Properties)
	}
	c.Logs = CloneLogs(f.Logs)
	return &c
}

// CloneLogs deep copies a property log map.
func CloneLogs(logs map[string][]Log) map[string][]Log {
	if logs == nil {
		return nil
	}
	out := make(map[string][]Log, len(logs))
	for k, v := range logs {
		out[k] = append([]Log(nil), v...)
	}
	return out
}

// SortLogs orders every property's log entries by timestamp, oldest first.
func SortLogs(logs map[string][]Log) {
	for _, entries := range logs {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].TS < entries[j].TS })
	}
}

// SortFeatures orders features by id so listings are deterministic.
func SortFeatures(features []*Feature) {
	sort.Slice(features, func(i, j int) bool { return features[i].ID < features[j].ID })
}
