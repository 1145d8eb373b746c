// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package models

import "strings"

// DefaultLayerType is assigned to layers created without an explicit type.
const DefaultLayerType = "geojson"

// LayerURLPrefix is the REST path prefix used to build a layer's url.
const LayerURLPrefix = "/api/layers/"

// Layer is a full feature collection as exchanged with storage connectors.
// Empty string fields are treated as absent; FillDefaults assigns defaults once.
type Layer struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title,omitempty"`
	Description        string     `json:"description,omitempty"`
	Type               string     `json:"type,omitempty"`
	Storage            string     `json:"storage,omitempty"`
	URL                string     `json:"url,omitempty"`
	TypeURL            string     `json:"typeUrl,omitempty"`
	DefaultFeatureType string     `json:"defaultFeatureType,omitempty"`
	Image              string     `json:"image,omitempty"`
	UseLog             bool       `json:"useLog,omitempty"`
	Dynamic            bool       `json:"dynamic,omitempty"`
	Updated            int64      `json:"updated,omitempty"`
	Tags               []string   `json:"tags"`
	Features           []*Feature `json:"features"`
}

// LayerDefinition is the stripped layer record kept in the layer directory and
// persisted to the layer directory file. It never carries features.
type LayerDefinition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Updated     int64  `json:"updated,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Storage     string `json:"storage"`
	URL         string `json:"url"`
}

// FillDefaults normalizes a layer received from a caller: it generates an id
// when missing, lowercases the id, defaults the title to the id and the type
// to DefaultLayerType, and makes Tags and Features non-nil.
func (l *Layer) FillDefaults(newID func() string) {
	if l.ID == "" && newID != nil {
		l.ID = newID()
	}
	l.ID = strings.ToLower(l.ID)
	if l.Title == "" {
		l.Title = l.ID
	}
	if l.Type == "" {
		l.Type = DefaultLayerType
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	if l.Features == nil {
		l.Features = []*Feature{}
	}
}

// Definition returns the directory form of the layer. A layer without a url
// points at its REST resource.
func (l *Layer) Definition() *LayerDefinition {
	typ := l.Type
	if typ == "" {
		typ = DefaultLayerType
	}
	url := l.URL
	if url == "" {
		url = LayerURLPrefix + l.ID
	}
	return &LayerDefinition{
		ID:          l.ID,
		Title:       l.Title,
		Updated:     l.Updated,
		Description: l.Description,
		Type:        typ,
		Storage:     l.Storage,
		URL:         url,
	}
}

// Clone returns a deep copy of the layer, features included.
func (l *Layer) Clone() *Layer {
	if l == nil {
		return nil
	}
	c := *l
	if l.Tags != nil {
		c.Tags = append([]string(nil), l.Tags...)
	}
	if l.Features != nil {
		c.Features = make([]*Feature, len(l.Features))
		for i, f := range l.Features {
			c.Features[i] = f.Clone()
		}
	}
	return &c
}

// WithoutFeatures returns a shallow copy with an empty feature list.
func (l *Layer) WithoutFeatures() *Layer {
	c := *l
	c.Features = []*Feature{}
	return &c
}

// Layer converts a directory definition back to a (feature-less) layer.
func (d *LayerDefinition) Layer() *Layer {
	return &Layer{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Type:        d.Type,
		Storage:     d.Storage,
		URL:         d.URL,
		Updated:     d.Updated,
		Tags:        []string{},
		Features:    []*Feature{},
	}
}

// Clone returns a copy of the definition.
func (d *LayerDefinition) Clone() *LayerDefinition {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
