// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/directory"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
	"github.com/tomtom215/layersync/internal/models"
)

func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeStorage records calls and answers OK. Delete callbacks can be held back
// to simulate a slow backend.
type fakeStorage struct {
	connector.Base

	mu         sync.Mutex
	calls      []string
	holdDelete bool
	held       []models.Callback
	logs       map[string][]models.Log
	keys       map[string]models.KeyValue
	doubleCall bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		Base: connector.NewBase(connector.RoleStorage, false),
		keys: make(map[string]models.KeyValue),
	}
}

func (s *fakeStorage) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *fakeStorage) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeStorage) AddLayer(_ context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	s.record("addLayer:" + l.ID)
	cb(models.OK())
	if s.doubleCall {
		cb(models.Failure(models.ResultError, "second answer"))
	}
}

func (s *fakeStorage) UpdateLayer(_ context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	s.record("updateLayer:" + l.ID)
	cb(models.OK())
}

func (s *fakeStorage) DeleteLayer(_ context.Context, id string, _ models.Meta, cb models.Callback) {
	s.record("deleteLayer:" + id)
	if s.holdDelete {
		s.mu.Lock()
		s.held = append(s.held, cb)
		s.mu.Unlock()
		return
	}
	cb(models.OK())
}

func (s *fakeStorage) AddFeature(_ context.Context, layerID string, f *models.Feature, _ models.Meta, cb models.Callback) {
	s.record("addFeature:" + layerID + "/" + f.ID)
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: f})
}

func (s *fakeStorage) GetFeature(_ context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	s.record("getFeature:" + layerID + "/" + featureID)
	if featureID == "missing" {
		cb(models.Failure(models.ResultFeatureNotFound, featureID))
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Feature: &models.Feature{ID: featureID, Type: models.FeatureType}})
}

func (s *fakeStorage) UpdateFeature(_ context.Context, layerID string, f *models.Feature, useLog bool, _ models.Meta, cb models.Callback) {
	s.record(fmt.Sprintf("updateFeature:%s/%s:%t", layerID, f.ID, useLog))
	cb(models.OK())
}

func (s *fakeStorage) UpdateLogs(_ context.Context, layerID, featureID string, logs map[string][]models.Log, _ models.Meta, cb models.Callback) {
	s.record("updateLogs:" + layerID + "/" + featureID)
	s.mu.Lock()
	s.logs = logs
	s.mu.Unlock()
	cb(models.OK())
}

func (s *fakeStorage) UpdateProperty(_ context.Context, layerID, featureID, property string, value any, useLog bool, _ models.Meta, cb models.Callback) {
	s.record(fmt.Sprintf("updateProperty:%s/%s/%s=%v:%t", layerID, featureID, property, value, useLog))
	cb(models.OK())
}

func (s *fakeStorage) AddProject(_ context.Context, p *models.Project, _ models.Meta, cb models.Callback) {
	s.record("addProject:" + p.ID)
	cb(&models.CallbackResult{Result: models.ResultOK, Project: p})
}

func (s *fakeStorage) DeleteProject(_ context.Context, id string, _ models.Meta, cb models.Callback) {
	s.record("deleteProject:" + id)
	cb(models.Failure(models.ResultProjectNotFound, id))
}

func (s *fakeStorage) UpdateKey(_ context.Context, id string, v models.KeyValue, _ models.Meta, cb models.Callback) {
	s.record("updateKey:" + id)
	s.mu.Lock()
	s.keys[id] = v
	s.mu.Unlock()
	cb(models.OK())
}

func (s *fakeStorage) GetKey(_ context.Context, id string, _ models.Meta, cb models.Callback) {
	s.mu.Lock()
	v := s.keys[id]
	s.mu.Unlock()
	cb(&models.CallbackResult{Result: models.ResultOK, Value: v})
}

func (s *fakeStorage) GetKeys(_ context.Context, _ models.Meta, cb models.Callback) {
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: map[string]*models.Key{
		"weather": {ID: "weather", Title: "Weather"},
	}})
}

func (s *fakeStorage) releaseDeletes(res *models.CallbackResult) {
	s.mu.Lock()
	held := s.held
	s.held = nil
	s.mu.Unlock()
	for _, cb := range held {
		cb(res)
	}
}

// fakeInterface records what it is told.
type fakeInterface struct {
	connector.Base

	mu     sync.Mutex
	calls  []string
	layers []string
}

func newFakeInterface(receiveCopy bool) *fakeInterface {
	return &fakeInterface{Base: connector.NewBase(connector.RoleInterface, receiveCopy)}
}

func (i *fakeInterface) record(call string) {
	i.mu.Lock()
	i.calls = append(i.calls, call)
	i.mu.Unlock()
}

func (i *fakeInterface) Calls() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.calls...)
}

func (i *fakeInterface) InitLayer(l *models.Layer, _ models.Meta) {
	i.mu.Lock()
	i.layers = append(i.layers, l.ID)
	i.mu.Unlock()
}

func (i *fakeInterface) AddLayer(_ context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	i.record("addLayer:" + l.ID)
	cb(models.OK())
}

func (i *fakeInterface) UpdateLayer(_ context.Context, l *models.Layer, _ models.Meta, cb models.Callback) {
	i.record("updateLayer:" + l.ID)
	cb(models.OK())
}

func (i *fakeInterface) DeleteLayer(_ context.Context, id string, _ models.Meta, cb models.Callback) {
	i.record("deleteLayer:" + id)
	cb(models.OK())
}

func (i *fakeInterface) UpdateFeature(_ context.Context, layerID string, f *models.Feature, useLog bool, _ models.Meta, cb models.Callback) {
	i.record(fmt.Sprintf("updateFeature:%s/%s:%t", layerID, f.ID, useLog))
	cb(models.OK())
}

func (i *fakeInterface) DeleteFeature(_ context.Context, layerID, featureID string, _ models.Meta, cb models.Callback) {
	i.record("deleteFeature:" + layerID + "/" + featureID)
	cb(models.OK())
}

func (i *fakeInterface) UpdateKey(_ context.Context, id string, _ models.KeyValue, _ models.Meta, cb models.Callback) {
	i.record("updateKey:" + id)
	cb(models.OK())
}

type fixture struct {
	m       *Manager
	storage *fakeStorage
	ws      *fakeInterface
	bus     *fakeInterface
	dir     string
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()

	dir := t.TempDir()
	ids := 0
	m := New(Config{DataDir: dir, SaveDelay: delay},
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("gen-%d", ids)
		}),
	)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	f := &fixture{
		m:       m,
		storage: newFakeStorage(),
		ws:      newFakeInterface(false),
		bus:     newFakeInterface(true),
		dir:     dir,
	}
	for id, c := range map[string]connector.Connector{"memory": f.storage, "websocket": f.ws, "bus": f.bus} {
		if err := m.AddConnector(id, c, nil); err != nil {
			t.Fatalf("AddConnector(%s) error = %v", id, err)
		}
	}
	t.Cleanup(func() { m.saveLayers.Cancel(); m.saveProjects.Cancel() })
	return f
}

// capture records the single result a callback receives.
type capture struct {
	mu    sync.Mutex
	res   *models.CallbackResult
	calls int
}

func (c *capture) cb(res *models.CallbackResult) {
	c.mu.Lock()
	c.res = res
	c.calls++
	c.mu.Unlock()
}

func (c *capture) result(t *testing.T) *models.CallbackResult {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.res == nil {
		t.Fatal("callback was not invoked")
	}
	return c.res
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestAddLayerThenFind(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	var got capture
	f.m.AddLayer(ctx, &models.Layer{ID: "Roads", Description: "main roads"}, models.Meta{Source: "api"}, got.cb)
	if res := got.result(t); res.Result != models.ResultOK {
		t.Fatalf("AddLayer result = %v, want OK", res.Result)
	}

	def := f.m.FindLayer("ROADS")
	if def == nil {
		t.Fatal("FindLayer() = nil, want definition")
	}
	want := models.LayerDefinition{
		ID:          "roads",
		Title:       "roads",
		Updated:     fixedNow.UnixMilli(),
		Description: "main roads",
		Type:        models.DefaultLayerType,
		Storage:     "memory",
		URL:         "/api/layers/roads",
	}
	if *def != want {
		t.Errorf("FindLayer() = %+v, want %+v", *def, want)
	}
	if !contains(f.storage.Calls(), "addLayer:roads") {
		t.Errorf("storage calls = %v, want addLayer:roads", f.storage.Calls())
	}
	for name, iface := range map[string]*fakeInterface{"websocket": f.ws, "bus": f.bus} {
		if !contains(iface.Calls(), "addLayer:roads") {
			t.Errorf("%s calls = %v, want addLayer:roads", name, iface.Calls())
		}
		if !contains(iface.layers, "roads") {
			t.Errorf("%s InitLayer not called for roads", name)
		}
	}
}

func TestAddLayerGeneratesID(t *testing.T) {
	f := newFixture(t, time.Hour)

	layer := &models.Layer{Title: "Untitled"}
	f.m.AddLayer(context.Background(), layer, models.Meta{}, nil)
	if layer.ID != "gen-1" {
		t.Fatalf("layer.ID = %q, want gen-1", layer.ID)
	}
	if f.m.FindLayer("gen-1") == nil {
		t.Error("generated layer missing from directory")
	}
}

func TestAddLayerDuplicate(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	f.m.AddLayer(ctx, &models.Layer{ID: "parks", Title: "Parks"}, models.Meta{}, nil)

	var got capture
	f.m.AddLayer(ctx, &models.Layer{ID: "parks", Title: "Other"}, models.Meta{}, got.cb)
	res := got.result(t)
	if res.Result != models.ResultLayerAlreadyExists {
		t.Fatalf("duplicate AddLayer result = %v, want %v", res.Result, models.ResultLayerAlreadyExists)
	}
	if !errors.Is(res.Err(), models.ErrLayerAlreadyExists) {
		t.Errorf("res.Err() = %v, want ErrLayerAlreadyExists", res.Err())
	}
	if def := f.m.FindLayer("parks"); def.Title != "Parks" {
		t.Errorf("title after duplicate add = %q, want Parks", def.Title)
	}
}

func TestUpdateLayerUpsert(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		var got capture
		f.m.UpdateLayer(ctx, &models.Layer{ID: "Rivers", Title: "Rivers"}, models.Meta{Source: "api"}, got.cb)
		if res := got.result(t); res.Result != models.ResultOK {
			t.Fatalf("UpdateLayer #%d result = %v, want OK", i, res.Result)
		}
		if got.calls != 1 {
			t.Fatalf("UpdateLayer #%d callback calls = %d, want 1", i, got.calls)
		}
	}

	layers := f.m.Layers()
	if len(layers) != 1 {
		t.Fatalf("Layers() len = %d, want 1", len(layers))
	}
	if layers[0].ID != "rivers" || layers[0].Title != "Rivers" || layers[0].Storage != "memory" {
		t.Errorf("Layers()[0] = %+v", layers[0])
	}
}

func TestUpdateLayerKeepsStorage(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	f.m.AddLayer(ctx, &models.Layer{ID: "lakes"}, models.Meta{}, nil)
	f.m.UpdateLayer(ctx, &models.Layer{ID: "lakes", Title: "Lakes"}, models.Meta{}, nil)

	if def := f.m.FindLayer("lakes"); def.Storage != "memory" || def.Title != "Lakes" {
		t.Errorf("FindLayer() = %+v, want storage memory and title Lakes", def)
	}
}

func TestAddLayerUnknownStorage(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	var added capture
	layer := &models.Layer{ID: "tiles", Storage: "mongo", URL: "http://example.org/tiles.json"}
	f.m.AddLayer(ctx, layer, models.Meta{}, added.cb)
	if res := added.result(t); res.Result != models.ResultOK {
		t.Fatalf("AddLayer result = %v, want OK", res.Result)
	}

	def := f.m.FindLayer("tiles")
	if def.Storage != "" {
		t.Errorf("directory storage = %q, want empty", def.Storage)
	}
	if def.URL != "http://example.org/tiles.json" {
		t.Errorf("directory url = %q, want caller url", def.URL)
	}

	var got capture
	f.m.AddFeature(ctx, "tiles", &models.Feature{ID: "f1"}, models.Meta{}, got.cb)
	if res := got.result(t); res.Result != models.ResultOK {
		t.Fatalf("AddFeature result = %v (%s), want OK", res.Result, res.Error)
	}
	if !contains(f.storage.Calls(), "addFeature:tiles/f1") {
		t.Errorf("storage calls = %v, want addFeature:tiles/f1", f.storage.Calls())
	}
}

func TestAddProjectUnknownStorage(t *testing.T) {
	f := newFixture(t, time.Hour)

	f.m.AddProject(context.Background(), &models.Project{ID: "harbour", Storage: "mongo"}, models.Meta{}, nil)
	if p := f.m.FindProject("harbour"); p == nil || p.Storage != "" {
		t.Fatalf("FindProject() = %+v, want empty storage", p)
	}
	if s := f.m.FindStorageForProjectID("harbour"); s == nil || s.ID() != "memory" {
		t.Errorf("FindStorageForProjectID() = %v, want default memory storage", s)
	}
}

func TestUpdateLogsBackfillsTimestamps(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	f.m.AddLayer(ctx, &models.Layer{ID: "trees"}, models.Meta{}, nil)

	logs := map[string][]models.Log{
		"height": {
			{Value: 4},
			{TS: 1000, Value: 3},
		},
	}
	var got capture
	f.m.UpdateLogs(ctx, "trees", "oak", logs, models.Meta{}, got.cb)
	if res := got.result(t); res.Result != models.ResultOK {
		t.Fatalf("UpdateLogs result = %v, want OK", res.Result)
	}

	stored := f.storage.logs["height"]
	if len(stored) != 2 {
		t.Fatalf("stored logs = %v, want 2 entries", stored)
	}
	if stored[0].TS != fixedNow.UnixMilli() {
		t.Errorf("backfilled ts = %d, want %d", stored[0].TS, fixedNow.UnixMilli())
	}
	if stored[1].TS != 1000 {
		t.Errorf("explicit ts = %d, want 1000", stored[1].TS)
	}
	for _, l := range stored {
		if l.Prop != "height" {
			t.Errorf("log prop = %q, want height", l.Prop)
		}
	}
}

func TestUpdateLogsUnknownLayer(t *testing.T) {
	f := newFixture(t, time.Hour)

	var got capture
	f.m.UpdateLogs(context.Background(), "nowhere", "x", map[string][]models.Log{}, models.Meta{}, got.cb)
	if res := got.result(t); res.Result != models.ResultLayerNotFound {
		t.Errorf("UpdateLogs result = %v, want %v", res.Result, models.ResultLayerNotFound)
	}
}

func TestInterfacesSkipOrigin(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantWS  bool
		wantBus bool
	}{
		{name: "from rest", source: "api", wantWS: true, wantBus: true},
		{name: "from websocket", source: "websocket", wantWS: false, wantBus: true},
		{name: "from bus with copy", source: "bus", wantWS: true, wantBus: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Hour)
			ctx := context.Background()
			f.m.AddLayer(ctx, &models.Layer{ID: "poi"}, models.Meta{}, nil)

			feature := &models.Feature{ID: "cafe"}
			f.m.UpdateFeature(ctx, "poi", feature, models.Meta{Source: tt.source}, nil)

			call := "updateFeature:poi/cafe:false"
			if got := contains(f.ws.Calls(), call); got != tt.wantWS {
				t.Errorf("websocket received = %v, want %v", got, tt.wantWS)
			}
			if got := contains(f.bus.Calls(), call); got != tt.wantBus {
				t.Errorf("bus received = %v, want %v", got, tt.wantBus)
			}
			if !contains(f.storage.Calls(), "updateFeature:poi/cafe:true") {
				t.Errorf("storage calls = %v, want logged update", f.storage.Calls())
			}
			if feature.Type != models.FeatureType {
				t.Errorf("feature type = %q, want %q", feature.Type, models.FeatureType)
			}
		})
	}
}

func TestDeleteLayerWaitsForStorage(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	f.m.AddLayer(ctx, &models.Layer{ID: "roads"}, models.Meta{}, nil)
	f.storage.holdDelete = true

	var got capture
	f.m.DeleteLayer(ctx, "roads", models.Meta{Source: "api"}, got.cb)

	if f.m.FindLayer("roads") == nil {
		t.Fatal("layer removed before storage answered")
	}
	if contains(f.ws.Calls(), "deleteLayer:roads") {
		t.Fatal("interfaces notified before storage answered")
	}

	f.storage.releaseDeletes(models.Failure(models.ResultError, "disk full"))

	if f.m.FindLayer("roads") != nil {
		t.Error("layer still present after storage answered")
	}
	if !contains(f.ws.Calls(), "deleteLayer:roads") {
		t.Error("interfaces not notified after storage answered")
	}
	if res := got.result(t); res.Result != models.ResultError {
		t.Errorf("DeleteLayer result = %v, want storage's answer", res.Result)
	}
}

func TestDirectoryWritesCoalesce(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		f.m.AddLayer(ctx, &models.Layer{ID: id}, models.Meta{}, nil)
	}
	f.m.UpdateLayer(ctx, &models.Layer{ID: "c", Title: "Last"}, models.Meta{}, nil)

	path := filepath.Join(f.dir, "layers.json")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("layer directory written inside quiet window (stat err = %v)", err)
	}

	f.m.Close()

	defs, err := directory.NewFile[*models.LayerDefinition](path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("persisted layers = %d, want 3", len(defs))
	}
	if defs["c"].Title != "Last" {
		t.Errorf("persisted title = %q, want Last", defs["c"].Title)
	}
}

func TestDirectoryReloadedOnInit(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	f.m.AddLayer(ctx, &models.Layer{ID: "roads"}, models.Meta{}, nil)
	f.m.AddProject(ctx, &models.Project{ID: "city", Title: "City"}, models.Meta{}, nil)
	f.m.Close()

	m := New(Config{DataDir: f.dir, SaveDelay: time.Hour})
	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if m.FindLayer("roads") == nil {
		t.Error("layer not reloaded")
	}
	if p := m.FindProject("city"); p == nil || p.URL != "/api/projects/city" {
		t.Errorf("project reloaded = %+v", p)
	}
}

func TestAddFeature(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	var missing capture
	f.m.AddFeature(ctx, "nowhere", &models.Feature{ID: "x"}, models.Meta{}, missing.cb)
	if res := missing.result(t); res.Result != models.ResultError {
		t.Errorf("AddFeature on unknown layer = %v, want %v", res.Result, models.ResultError)
	}

	f.m.AddLayer(ctx, &models.Layer{ID: "poi"}, models.Meta{}, nil)
	var got capture
	f.m.AddFeature(ctx, "POI", &models.Feature{}, models.Meta{}, got.cb)
	res := got.result(t)
	if res.Result != models.ResultOK {
		t.Fatalf("AddFeature result = %v, want OK", res.Result)
	}
	if res.Feature.ID == "" || res.Feature.Type != models.FeatureType {
		t.Errorf("added feature = %+v, want generated id and Feature type", res.Feature)
	}
}

func TestFindFeature(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	f.m.AddLayer(ctx, &models.Layer{ID: "poi"}, models.Meta{}, nil)

	feat, err := f.m.FindFeature(ctx, "poi", "cafe")
	if err != nil || feat.ID != "cafe" {
		t.Fatalf("FindFeature() = %v, %v", feat, err)
	}
	if _, err := f.m.FindFeature(ctx, "poi", "missing"); !errors.Is(err, models.ErrFeatureNotFound) {
		t.Errorf("FindFeature(missing) error = %v, want ErrFeatureNotFound", err)
	}
}

func TestUpdatePropertyRoutesToStorage(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	f.m.AddLayer(ctx, &models.Layer{ID: "poi"}, models.Meta{}, nil)

	var got capture
	f.m.UpdateProperty(ctx, "poi", "cafe", "name", "Bean", true, models.Meta{}, got.cb)
	if res := got.result(t); res.Result != models.ResultOK {
		t.Fatalf("UpdateProperty result = %v", res.Result)
	}
	if !contains(f.storage.Calls(), "updateProperty:poi/cafe/name=Bean:true") {
		t.Errorf("storage calls = %v", f.storage.Calls())
	}
}

func TestGeoQueryValidation(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	tests := []struct {
		name string
		call func(cb models.Callback)
	}{
		{"bbox short corner", func(cb models.Callback) {
			f.m.GetBBox(ctx, "poi", []float64{1}, []float64{2, 3}, models.Meta{}, cb)
		}},
		{"sphere zero distance", func(cb models.Callback) {
			f.m.GetSphere(ctx, "poi", 0, 1, 2, models.Meta{}, cb)
		}},
		{"polygon without geometry", func(cb models.Callback) {
			f.m.GetWithinPolygon(ctx, "poi", &models.Feature{}, models.Meta{}, cb)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got capture
			tt.call(got.cb)
			if res := got.result(t); res.Result != models.ResultError {
				t.Errorf("result = %v, want %v", res.Result, models.ResultError)
			}
		})
	}
}

func TestCallbackFiresOnce(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.storage.doubleCall = true

	var got capture
	f.m.AddLayer(context.Background(), &models.Layer{ID: "twice"}, models.Meta{}, got.cb)
	if got.calls != 1 {
		t.Errorf("callback calls = %d, want 1", got.calls)
	}
	if got.result(t).Result != models.ResultOK {
		t.Errorf("first answer not kept")
	}
}

func TestProjects(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	var added capture
	f.m.AddProject(ctx, &models.Project{ID: "city", Title: "City"}, models.Meta{}, added.cb)
	if res := added.result(t); res.Result != models.ResultOK {
		t.Fatalf("AddProject result = %v", res.Result)
	}

	var dup capture
	f.m.AddProject(ctx, &models.Project{ID: "city"}, models.Meta{}, dup.cb)
	if res := dup.result(t); res.Result != models.ResultProjectAlreadyExists {
		t.Errorf("duplicate AddProject = %v, want %v", res.Result, models.ResultProjectAlreadyExists)
	}

	id := f.m.GetNewProject(ctx, "Survey", models.Meta{})
	p := f.m.FindProject(id)
	if p == nil || p.Title != "Survey" || !p.Connected || p.Storage != "memory" {
		t.Fatalf("GetNewProject entry = %+v", p)
	}
	if got := len(f.m.Projects()); got != 2 {
		t.Errorf("Projects() len = %d, want 2", got)
	}

	var deleted capture
	f.m.DeleteProject(ctx, "city", models.Meta{}, deleted.cb)
	if res := deleted.result(t); res.Result != models.ResultProjectNotFound {
		t.Errorf("DeleteProject result = %v, want storage answer", res.Result)
	}
	if f.m.FindProject("city") != nil {
		t.Error("project kept after storage answered")
	}
}

func TestUpdateKey(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []models.KeyValue
	)
	f.m.SubscribeKey(ctx, "sensor/*", models.Meta{}, func(res *models.CallbackResult) {
		mu.Lock()
		seen = append(seen, res.Value)
		mu.Unlock()
	})

	var got capture
	f.m.UpdateKey(ctx, "sensor/1", models.KeyValue{"temp": 21.5}, models.Meta{Source: "api"}, got.cb)
	res := got.result(t)
	if res.Result != models.ResultOK {
		t.Fatalf("UpdateKey result = %v", res.Result)
	}
	if res.Value[models.KeyTimeField] != fixedNow.UnixMilli() {
		t.Errorf("time field = %v, want %d", res.Value[models.KeyTimeField], fixedNow.UnixMilli())
	}

	f.m.UpdateKey(ctx, "other", models.KeyValue{"time": int64(5)}, models.Meta{}, nil)

	mu.Lock()
	if len(seen) != 1 || seen[0]["temp"] != 21.5 {
		t.Errorf("subscription saw %v, want one sensor value", seen)
	}
	mu.Unlock()

	if k := f.m.FindKey("sensor/1"); k == nil || k.Title != "sensor/1" {
		t.Errorf("FindKey() = %+v", k)
	}
	if !contains(f.ws.Calls(), "updateKey:sensor/1") {
		t.Errorf("websocket calls = %v, want updateKey", f.ws.Calls())
	}

	var value capture
	f.m.GetKey(ctx, "other", models.Meta{}, value.cb)
	if v := value.result(t).Value; v["time"] != int64(5) {
		t.Errorf("GetKey value = %v, want explicit time kept", v)
	}

	var unknown capture
	f.m.GetKey(ctx, "nope", models.Meta{}, unknown.cb)
	if res := unknown.result(t); res.Result != models.ResultError {
		t.Errorf("GetKey unknown = %v, want %v", res.Result, models.ResultError)
	}
}

func TestUpdateKeyWithoutStorage(t *testing.T) {
	m := New(Config{DataDir: t.TempDir(), SaveDelay: time.Hour})
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { m.saveLayers.Cancel(); m.saveProjects.Cancel() })

	before := testutil.ToFloat64(metrics.KeysUnpersisted)
	var got capture
	m.UpdateKey(context.Background(), "wind", models.KeyValue{"speed": 12}, models.Meta{}, got.cb)
	if res := got.result(t); res.Result != models.ResultOK {
		t.Fatalf("UpdateKey result = %v, want OK", res.Result)
	}
	if d := testutil.ToFloat64(metrics.KeysUnpersisted) - before; d != 1 {
		t.Errorf("unpersisted key counter delta = %v, want 1", d)
	}
	if m.FindKey("wind") == nil {
		t.Error("key missing from directory")
	}
}

func TestSubscribeKeyEndsWithContext(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	f.m.SubscribeKey(ctx, "*", models.Meta{}, func(*models.CallbackResult) {})
	if n := f.m.subs.len(); n != 1 {
		t.Fatalf("subscriptions = %d, want 1", n)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for f.m.subs.len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not removed after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSyncKeys(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.m.SyncKeys(context.Background())

	k := f.m.FindKey("weather")
	if k == nil || k.Storage != "memory" || k.Title != "Weather" {
		t.Errorf("FindKey(weather) = %+v", k)
	}
}

func TestResources(t *testing.T) {
	dir := t.TempDir()
	resDir := filepath.Join(dir, "resourceTypes")
	if err := os.MkdirAll(resDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(resDir, "Trees.json"), []byte(`{"title":"Trees","featureTypes":{}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	m := New(Config{DataDir: dir})
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rf, err := m.GetResource(ctx, "trees")
	if err != nil || rf.Title != "Trees" {
		t.Fatalf("GetResource() = %+v, %v", rf, err)
	}
	if _, err := m.GetResource(ctx, "rocks"); !errors.Is(err, models.ErrResourceNotFound) {
		t.Errorf("GetResource(rocks) error = %v, want ErrResourceNotFound", err)
	}

	if err := m.UpdateResource(ctx, "rocks", &models.ResourceFile{Title: "Rocks"}); err != nil {
		t.Fatalf("UpdateResource() error = %v", err)
	}
	ids, err := m.ResourceIDs(ctx)
	if err != nil || len(ids) != 2 {
		t.Errorf("ResourceIDs() = %v, %v", ids, err)
	}
}
