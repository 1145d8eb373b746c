// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package badgerstore

import (
	"context"
	"io"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
)

func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func openTest(t *testing.T, cfg Config) *Connector {
	t.Helper()
	c, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	c.SetID("badger")
	return c
}

func call(t *testing.T, fn func(cb models.Callback)) *models.CallbackResult {
	t.Helper()
	var res *models.CallbackResult
	fn(func(r *models.CallbackResult) { res = r })
	if res == nil {
		t.Fatal("callback not invoked")
	}
	return res
}

func pt(id string, lng, lat float64) *models.Feature {
	coords, _ := json.Marshal([]float64{lng, lat})
	return &models.Feature{ID: id, Type: models.FeatureType, Geometry: &models.Geometry{Type: "Point", Coordinates: coords}}
}

func TestConfigValidate(t *testing.T) {
	if err := (&Config{}).Validate(); err == nil {
		t.Error("Validate() with no path = nil")
	}
	if err := (&Config{InMemory: true}).Validate(); err != nil {
		t.Errorf("Validate(in memory) = %v", err)
	}
}

func TestLayersAndFeatures(t *testing.T) {
	c := openTest(t, Config{InMemory: true})
	defer c.Close()
	ctx := context.Background()
	meta := models.Meta{User: "u"}

	layer := &models.Layer{ID: "stations", Title: "Stations", Features: []*models.Feature{
		pt("centraal", 4.9003, 52.3791),
		pt("zuid", 4.8721, 52.3389),
		pt("utrecht", 5.1100, 52.0894),
	}}
	if res := call(t, func(cb models.Callback) { c.AddLayer(ctx, layer, meta, cb) }); !res.IsOK() {
		t.Fatalf("AddLayer = %+v", res)
	}
	if res := call(t, func(cb models.Callback) { c.AddLayer(ctx, layer, meta, cb) }); res.Result != models.ResultLayerAlreadyExists {
		t.Errorf("duplicate AddLayer = %v", res.Result)
	}

	got := call(t, func(cb models.Callback) { c.GetLayer(ctx, "stations", meta, cb) })
	if !got.IsOK() || len(got.Layer.Features) != 3 || got.Layer.Features[0].ID != "centraal" {
		t.Fatalf("GetLayer = %+v", got.Layer)
	}

	upd := pt("zuid", 4.8721, 52.3389)
	upd.Properties = map[string]any{"platforms": 4.0}
	if res := call(t, func(cb models.Callback) { c.UpdateFeature(ctx, "stations", upd, true, meta, cb) }); !res.IsOK() {
		t.Fatalf("UpdateFeature = %+v", res)
	}
	call(t, func(cb models.Callback) {
		c.UpdateLogs(ctx, "stations", "zuid", map[string][]models.Log{"platforms": {{TS: 99999999999999, Value: 6.0}}}, meta, cb)
	})
	f := call(t, func(cb models.Callback) { c.GetFeature(ctx, "stations", "zuid", meta, cb) }).Feature
	if f.Properties["platforms"] != 6.0 || len(f.Logs["platforms"]) != 2 {
		t.Errorf("feature after logs = %+v", f)
	}

	near := call(t, func(cb models.Callback) { c.GetSphere(ctx, "stations", 10000, 4.89, 52.37, meta, cb) })
	if len(near.Features) != 2 {
		t.Errorf("GetSphere = %d features, want 2", len(near.Features))
	}
	box := call(t, func(cb models.Callback) {
		c.GetBBox(ctx, "stations", []float64{5, 52}, []float64{5.2, 52.2}, meta, cb)
	})
	if len(box.Features) != 1 || box.Features[0].ID != "utrecht" {
		t.Errorf("GetBBox = %+v", box.Features)
	}

	if res := call(t, func(cb models.Callback) { c.DeleteFeature(ctx, "stations", "zuid", meta, cb) }); !res.IsOK() {
		t.Errorf("DeleteFeature = %+v", res)
	}
	if res := call(t, func(cb models.Callback) { c.GetFeature(ctx, "stations", "zuid", meta, cb) }); res.Result != models.ResultFeatureNotFound {
		t.Errorf("GetFeature after delete = %v", res.Result)
	}
	if res := call(t, func(cb models.Callback) { c.DeleteLayer(ctx, "stations", meta, cb) }); !res.IsOK() {
		t.Errorf("DeleteLayer = %+v", res)
	}
	if res := call(t, func(cb models.Callback) { c.GetFeature(ctx, "stations", "centraal", meta, cb) }); res.Result != models.ResultLayerNotFound {
		t.Errorf("GetFeature after layer delete = %v", res.Result)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c := openTest(t, Config{Path: dir})
	call(t, func(cb models.Callback) { c.AddLayer(ctx, &models.Layer{ID: "l1"}, models.Meta{}, cb) })
	call(t, func(cb models.Callback) { c.AddProject(ctx, &models.Project{ID: "p1", Title: "P"}, models.Meta{}, cb) })
	call(t, func(cb models.Callback) { c.UpdateKey(ctx, "k1", models.KeyValue{"v": 1.0}, models.Meta{}, cb) })
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	c = openTest(t, Config{Path: dir})
	defer c.Close()
	if res := call(t, func(cb models.Callback) { c.GetLayer(ctx, "l1", models.Meta{}, cb) }); !res.IsOK() {
		t.Errorf("GetLayer after reopen = %+v", res)
	}
	if res := call(t, func(cb models.Callback) { c.AddProject(ctx, &models.Project{ID: "p1"}, models.Meta{}, cb) }); res.Result != models.ResultProjectAlreadyExists {
		t.Errorf("AddProject after reopen = %v", res.Result)
	}
	res := call(t, func(cb models.Callback) { c.GetKey(ctx, "k1", models.Meta{}, cb) })
	if !res.IsOK() || res.Value["v"] != 1.0 || res.Keys["k1"].Storage != "badger" {
		t.Errorf("GetKey after reopen = %+v", res)
	}
	keys := call(t, func(cb models.Callback) { c.GetKeys(ctx, models.Meta{}, cb) }).Keys
	if len(keys) != 1 {
		t.Errorf("GetKeys = %v", keys)
	}
	if res := call(t, func(cb models.Callback) { c.DeleteKey(ctx, "k1", models.Meta{}, cb) }); !res.IsOK() {
		t.Errorf("DeleteKey = %+v", res)
	}
	if res := call(t, func(cb models.Callback) { c.DeleteProject(ctx, "p1", models.Meta{}, cb) }); !res.IsOK() {
		t.Errorf("DeleteProject = %+v", res)
	}
}
