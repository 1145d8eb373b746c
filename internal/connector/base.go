// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package connector

import (
	"context"

	"github.com/tomtom215/layersync/internal/models"
)

// Base implements Connector with operations that report ResultError.
// Embed it and override what the concrete connector supports.
type Base struct {
	Kind Role
	// Copy makes an interface connector receive changes it originated.
	Copy bool

	id string
}

// NewBase returns a Base for the given role.
func NewBase(role Role, receiveCopy bool) Base {
	return Base{Kind: role, Copy: receiveCopy}
}

func (b *Base) ID() string                     { return b.id }
func (b *Base) SetID(id string)                { b.id = id }
func (b *Base) Role() Role                     { return b.Kind }
func (b *Base) IsInterface() bool              { return b.Kind == RoleInterface }
func (b *Base) ReceiveCopy() bool              { return b.Copy }
func (b *Base) Init(Dispatcher, Options) error { return nil }

func (b *Base) InitLayer(*models.Layer, models.Meta)     {}
func (b *Base) InitProject(*models.Project, models.Meta) {}

func (b *Base) unsupported(op string, cb models.Callback) {
	Complete(cb, models.Failuref(models.ResultError, "%s: %s not supported", b.id, op))
}

func (b *Base) AddLayer(_ context.Context, _ *models.Layer, _ models.Meta, cb models.Callback) {
	b.unsupported("addLayer", cb)
}

func (b *Base) GetLayer(_ context.Context, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("getLayer", cb)
}

func (b *Base) UpdateLayer(_ context.Context, _ *models.Layer, _ models.Meta, cb models.Callback) {
	b.unsupported("updateLayer", cb)
}

func (b *Base) DeleteLayer(_ context.Context, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("deleteLayer", cb)
}

func (b *Base) AddFeature(_ context.Context, _ string, _ *models.Feature, _ models.Meta, cb models.Callback) {
	b.unsupported("addFeature", cb)
}

func (b *Base) GetFeature(_ context.Context, _, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("getFeature", cb)
}

func (b *Base) UpdateFeature(_ context.Context, _ string, _ *models.Feature, _ bool, _ models.Meta, cb models.Callback) {
	b.unsupported("updateFeature", cb)
}

func (b *Base) DeleteFeature(_ context.Context, _, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("deleteFeature", cb)
}

func (b *Base) AddLog(_ context.Context, _, _, _ string, _ models.Log, _ models.Meta, cb models.Callback) {
	b.unsupported("addLog", cb)
}

func (b *Base) GetLog(_ context.Context, _, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("getLog", cb)
}

func (b *Base) DeleteLog(_ context.Context, _, _ string, _ int64, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("deleteLog", cb)
}

func (b *Base) UpdateLogs(_ context.Context, _, _ string, _ map[string][]models.Log, _ models.Meta, cb models.Callback) {
	b.unsupported("updateLogs", cb)
}

func (b *Base) UpdateProperty(_ context.Context, _, _, _ string, _ any, _ bool, _ models.Meta, cb models.Callback) {
	b.unsupported("updateProperty", cb)
}

func (b *Base) GetBBox(_ context.Context, _ string, _, _ []float64, _ models.Meta, cb models.Callback) {
	b.unsupported("getBBox", cb)
}

func (b *Base) GetSphere(_ context.Context, _ string, _, _, _ float64, _ models.Meta, cb models.Callback) {
	b.unsupported("getSphere", cb)
}

func (b *Base) GetWithinPolygon(_ context.Context, _ string, _ *models.Feature, _ models.Meta, cb models.Callback) {
	b.unsupported("getWithinPolygon", cb)
}

func (b *Base) AddProject(_ context.Context, _ *models.Project, _ models.Meta, cb models.Callback) {
	b.unsupported("addProject", cb)
}

func (b *Base) DeleteProject(_ context.Context, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("deleteProject", cb)
}

func (b *Base) GetKey(_ context.Context, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("getKey", cb)
}

func (b *Base) GetKeys(_ context.Context, _ models.Meta, cb models.Callback) {
	b.unsupported("getKeys", cb)
}

func (b *Base) UpdateKey(_ context.Context, _ string, _ models.KeyValue, _ models.Meta, cb models.Callback) {
	b.unsupported("updateKey", cb)
}

func (b *Base) DeleteKey(_ context.Context, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("deleteKey", cb)
}

func (b *Base) SubscribeKey(_ context.Context, _ string, _ models.Meta, cb models.Callback) {
	b.unsupported("subscribeKey", cb)
}
