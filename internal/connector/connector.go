// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package connector

import (
	"context"

	"github.com/tomtom215/layersync/internal/models"
)

// Role is the part a connector plays in dispatch.
type Role int

const (
	RoleStorage Role = iota
	RoleInterface
)

func (r Role) String() string {
	if r == RoleInterface {
		return "interface"
	}
	return "storage"
}

// Options carries connector specific settings from configuration.
type Options map[string]any

// String returns the string option or def when absent.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Bool returns the boolean option or def when absent.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// Dispatcher is the part of the manager connectors call back into when a
// change arrives from outside (a WebSocket client, another instance on the bus).
type Dispatcher interface {
	FindLayer(layerID string) *models.LayerDefinition
	UpdateLayer(ctx context.Context, layer *models.Layer, meta models.Meta, cb models.Callback)
	DeleteLayer(ctx context.Context, layerID string, meta models.Meta, cb models.Callback)
	UpdateFeature(ctx context.Context, layerID string, f *models.Feature, meta models.Meta, cb models.Callback)
	DeleteFeature(ctx context.Context, layerID, featureID string, meta models.Meta, cb models.Callback)
	UpdateLogs(ctx context.Context, layerID, featureID string, logs map[string][]models.Log, meta models.Meta, cb models.Callback)
	UpdateProperty(ctx context.Context, layerID, featureID, property string, value any, useLog bool, meta models.Meta, cb models.Callback)
	AddProject(ctx context.Context, p *models.Project, meta models.Meta, cb models.Callback)
	DeleteProject(ctx context.Context, projectID string, meta models.Meta, cb models.Callback)
	UpdateKey(ctx context.Context, keyID string, value models.KeyValue, meta models.Meta, cb models.Callback)
	DeleteKey(ctx context.Context, keyID string, meta models.Meta, cb models.Callback)
}

// Connector is the uniform capability set of a storage or interface backend.
// Every operation reports through its callback exactly once; connectors that
// cannot serve an operation report ResultError.
type Connector interface {
	ID() string
	SetID(id string)
	Role() Role
	IsInterface() bool
	ReceiveCopy() bool

	Init(d Dispatcher, options Options) error
	InitLayer(layer *models.Layer, meta models.Meta)
	InitProject(project *models.Project, meta models.Meta)

	AddLayer(ctx context.Context, layer *models.Layer, meta models.Meta, cb models.Callback)
	GetLayer(ctx context.Context, layerID string, meta models.Meta, cb models.Callback)
	UpdateLayer(ctx context.Context, layer *models.Layer, meta models.Meta, cb models.Callback)
	DeleteLayer(ctx context.Context, layerID string, meta models.Meta, cb models.Callback)

	AddFeature(ctx context.Context, layerID string, f *models.Feature, meta models.Meta, cb models.Callback)
	GetFeature(ctx context.Context, layerID, featureID string, meta models.Meta, cb models.Callback)
	UpdateFeature(ctx context.Context, layerID string, f *models.Feature, useLog bool, meta models.Meta, cb models.Callback)
	DeleteFeature(ctx context.Context, layerID, featureID string, meta models.Meta, cb models.Callback)

	AddLog(ctx context.Context, layerID, featureID, property string, log models.Log, meta models.Meta, cb models.Callback)
	GetLog(ctx context.Context, layerID, featureID string, meta models.Meta, cb models.Callback)
	DeleteLog(ctx context.Context, layerID, featureID string, ts int64, property string, meta models.Meta, cb models.Callback)
	UpdateLogs(ctx context.Context, layerID, featureID string, logs map[string][]models.Log, meta models.Meta, cb models.Callback)
	UpdateProperty(ctx context.Context, layerID, featureID, property string, value any, useLog bool, meta models.Meta, cb models.Callback)

	GetBBox(ctx context.Context, layerID string, southWest, northEast []float64, meta models.Meta, cb models.Callback)
	GetSphere(ctx context.Context, layerID string, maxDistance, lng, lat float64, meta models.Meta, cb models.Callback)
	GetWithinPolygon(ctx context.Context, layerID string, polygon *models.Feature, meta models.Meta, cb models.Callback)

	AddProject(ctx context.Context, p *models.Project, meta models.Meta, cb models.Callback)
	DeleteProject(ctx context.Context, projectID string, meta models.Meta, cb models.Callback)

	GetKey(ctx context.Context, keyID string, meta models.Meta, cb models.Callback)
	GetKeys(ctx context.Context, meta models.Meta, cb models.Callback)
	UpdateKey(ctx context.Context, keyID string, value models.KeyValue, meta models.Meta, cb models.Callback)
	DeleteKey(ctx context.Context, keyID string, meta models.Meta, cb models.Callback)
	SubscribeKey(ctx context.Context, pattern string, meta models.Meta, cb models.Callback)
}

// Complete invokes cb when it is non-nil.
func Complete(cb models.Callback, res *models.CallbackResult) {
	if cb != nil {
		cb(res)
	}
}

// KeyPublisher is implemented by storage connectors whose SubscribeKey
// delivers every key write, including writes made by other instances. The
// manager hands key subscriptions to such a connector instead of tracking
// them in process.
type KeyPublisher interface {
	PublishesKeys() bool
}
