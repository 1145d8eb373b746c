// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package models

// FeatureTypeDef and PropertyTypeDef are opaque schema objects. Clients own
// their meaning; the server only stores and serves them.
type (
	FeatureTypeDef  map[string]any
	PropertyTypeDef map[string]any
)

// ResourceFile is a type catalog loaded from the resource directory.
type ResourceFile struct {
	ID            string                     `json:"id,omitempty"`
	Title         string                     `json:"title,omitempty"`
	FeatureTypes  map[string]FeatureTypeDef  `json:"featureTypes"`
	PropertyTypes map[string]PropertyTypeDef `json:"propertyTypes"`
}

// Normalize makes both type maps non-nil.
func (r *ResourceFile) Normalize() {
	if r.FeatureTypes == nil {
		r.FeatureTypes = map[string]FeatureTypeDef{}
	}
	if r.PropertyTypes == nil {
		r.PropertyTypes = map[string]PropertyTypeDef{}
	}
}
