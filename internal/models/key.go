// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package models

import "maps"

// KeyTimeField is stamped into a key value when the writer did not set it.
const KeyTimeField = "time"

// Key is a named key-value channel in the key directory.
type Key struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Storage string `json:"storage,omitempty"`
}

// KeyValue is the arbitrary JSON object stored under a key.
type KeyValue map[string]any

// Clone returns a shallow copy of the value.
func (v KeyValue) Clone() KeyValue {
	if v == nil {
		return nil
	}
	return maps.Clone(v)
}

// Clone returns a copy of the key.
func (k *Key) Clone() *Key {
	if k == nil {
		return nil
	}
	c := *k
	return &c
}
