// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package models defines the data structures shared by every layersync component.

The manager, the connectors and the REST layer all exchange the same records, so
this package is the single source of truth for their shape and their JSON form.
It carries no behavior beyond default filling and small conversions.

Key Components:

  - Project: a named grouping of layers with a display title and owning storage
  - Layer: a feature collection with metadata and the id of its storage connector
  - LayerDefinition: the stripped layer record kept in the layer directory
  - Feature: a GeoJSON-like object with properties and per-property logs
  - Log: one timestamped property change
  - Key: a named key-value channel with an arbitrary JSON value
  - ResourceFile: a feature and property type catalog loaded from disk
  - LayerUpdate: the envelope interface connectors exchange with clients
  - Meta: the origin of a request (connector id and user id)
  - Result, CallbackResult: outcome codes and the payload handed to callbacks

Result codes:

The numeric codes double as HTTP status codes on the REST surface:

	ResultOK                   200
	ResultError                400
	ResultLayerAlreadyExists   406
	ResultLayerNotFound        407
	ResultFeatureNotFound      408
	ResultProjectAlreadyExists 409
	ResultProjectNotFound      410
	ResultResourceNotFound     428

Usage Example:

	layer := &models.Layer{ID: "Roads", Title: ""}
	layer.FillDefaults(uuid.NewString)
	// layer.ID == "roads", layer.Title == "roads", layer.Type == "geojson"

	def := layer.Definition()
	// def.URL == "/api/layers/roads", def carries no features

Thread Safety:

Models are plain values. Callers that share a record between goroutines must
copy it first; Layer.Clone and Feature.Clone produce deep copies.
*/
package models
