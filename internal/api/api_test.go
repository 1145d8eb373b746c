// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/auth"
	"github.com/tomtom215/layersync/internal/authz"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/manager"
	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage/memory"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

type testServer struct {
	t       *testing.T
	manager *manager.Manager
	handler *Handler
	http    http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := manager.New(manager.Config{DataDir: t.TempDir(), SaveDelay: time.Hour})
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := m.AddConnector("memory", memory.New(), nil); err != nil {
		t.Fatalf("AddConnector() error = %v", err)
	}
	t.Cleanup(m.Close)

	h := NewHandler(m, nil, HandlerConfig{Timeout: 2 * time.Second, Version: "test"})
	return &testServer{t: t, manager: m, handler: h, http: NewRouter(h, nil, nil).Setup()}
}

func (s *testServer) do(method, target, body string) (int, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("%s %s: decode response %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, env
}

func (s *testServer) mustDo(method, target, body string) envelope {
	s.t.Helper()
	code, env := s.do(method, target, body)
	if code != http.StatusOK {
		s.t.Fatalf("%s %s: status = %d, error = %+v", method, target, code, env.Error)
	}
	return env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

const pointFeature = `{"id":"f1","geometry":{"type":"Point","coordinates":[13.4,52.5]},"properties":{"name":"gate"}}`

func (s *testServer) seedLayer() {
	s.t.Helper()
	s.mustDo(http.MethodPost, "/api/layers", `{"id":"poi","title":"Points"}`)
	s.mustDo(http.MethodPost, "/api/layers/poi/features", pointFeature)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	env := s.mustDo(http.MethodGet, "/api/health", "")
	status := decodeData[HealthStatus](t, env)
	if status.Status != "healthy" || status.Version != "test" {
		t.Errorf("status = %+v", status)
	}
	if status.Connectors["memory"] != "storage" {
		t.Errorf("connectors = %v, want memory=storage", status.Connectors)
	}
}

func TestHealthDegraded(t *testing.T) {
	s := newTestServer(t)
	s.handler.AddHealthCheck("bus", func(context.Context) error { return io.ErrUnexpectedEOF })
	code, env := s.do(http.MethodGet, "/api/health", "")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if status := decodeData[HealthStatus](t, env); status.Checks["bus"] == "ok" {
		t.Errorf("checks = %v", status.Checks)
	}
}

func TestLayerLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.seedLayer()

	layers := decodeData[[]*models.LayerDefinition](t, s.mustDo(http.MethodGet, "/api/layers", ""))
	if len(layers) != 1 || layers[0].ID != "poi" || layers[0].Storage != "memory" {
		t.Fatalf("layers = %+v", layers)
	}

	layer := decodeData[models.Layer](t, s.mustDo(http.MethodGet, "/api/layers/poi", ""))
	if len(layer.Features) != 1 || layer.Features[0].ID != "f1" {
		t.Errorf("features = %+v", layer.Features)
	}

	code, env := s.do(http.MethodPost, "/api/layers", `{"id":"poi"}`)
	if code != int(models.ResultLayerAlreadyExists) || env.Error.Code != "LAYER_ALREADY_EXISTS" {
		t.Errorf("duplicate add: status = %d, error = %+v", code, env.Error)
	}

	s.mustDo(http.MethodPut, "/api/layers/poi", `{"title":"Renamed"}`)
	if def := s.manager.FindLayer("poi"); def == nil || def.Title != "Renamed" {
		t.Errorf("FindLayer() = %+v", def)
	}

	s.mustDo(http.MethodDelete, "/api/layers/poi", "")
	if code, _ := s.do(http.MethodGet, "/api/layers/poi", ""); code != int(models.ResultLayerNotFound) {
		t.Errorf("get deleted layer status = %d", code)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)
	s.seedLayer()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/api/layers", `{"id":`, http.StatusBadRequest},
		{"bad layer id", http.MethodPost, "/api/layers", `{"id":"has space"}`, http.StatusBadRequest},
		{"bbox missing param", http.MethodGet, "/api/layers/poi/bbox?swlng=1&swlat=1&nelng=2", "", http.StatusBadRequest},
		{"bbox out of range", http.MethodGet, "/api/layers/poi/bbox?swlng=-200&swlat=1&nelng=2&nelat=2", "", http.StatusBadRequest},
		{"sphere zero distance", http.MethodGet, "/api/layers/poi/sphere?lng=1&lat=1&distance=0", "", http.StatusBadRequest},
		{"log ts not a number", http.MethodDelete, "/api/layers/poi/features/f1/logs/name/abc", "", http.StatusBadRequest},
		{"bad key id", http.MethodPut, "/api/keys/bad%20key", `{}`, http.StatusBadRequest},
		{"unknown feature", http.MethodGet, "/api/layers/poi/features/nope", "", int(models.ResultFeatureNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(tt.method, tt.target, tt.body)
			if code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
			if env.Status != "error" || env.Error == nil {
				t.Errorf("envelope = %+v, want error", env)
			}
		})
	}
}

func TestFeatureOperations(t *testing.T) {
	s := newTestServer(t)
	s.seedLayer()

	f := decodeData[models.Feature](t, s.mustDo(http.MethodGet, "/api/layers/poi/features/f1", ""))
	if f.Properties["name"] != "gate" {
		t.Fatalf("feature = %+v", f)
	}

	s.mustDo(http.MethodPut, "/api/layers/poi/features/f1/properties/name", `{"value":"door","useLog":true}`)
	f = decodeData[models.Feature](t, s.mustDo(http.MethodGet, "/api/layers/poi/features/f1", ""))
	if f.Properties["name"] != "door" {
		t.Errorf("name = %v, want door", f.Properties["name"])
	}

	logs := decodeData[map[string][]models.Log](t, s.mustDo(http.MethodGet, "/api/layers/poi/features/f1/logs", ""))
	if len(logs["name"]) == 0 {
		t.Fatalf("logs = %+v, want entries for name", logs)
	}

	s.mustDo(http.MethodPost, "/api/layers/poi/features/f1/logs/note", `{"ts":1000,"value":"checked","user":"ann"}`)
	logs = decodeData[map[string][]models.Log](t, s.mustDo(http.MethodGet, "/api/layers/poi/features/f1/logs", ""))
	if len(logs["note"]) != 1 || logs["note"][0].TS != 1000 {
		t.Fatalf("note logs = %+v", logs["note"])
	}

	s.mustDo(http.MethodDelete, "/api/layers/poi/features/f1/logs/note/1000", "")
	logs = decodeData[map[string][]models.Log](t, s.mustDo(http.MethodGet, "/api/layers/poi/features/f1/logs", ""))
	if len(logs["note"]) != 0 {
		t.Errorf("note logs after delete = %+v", logs["note"])
	}

	s.mustDo(http.MethodPut, "/api/layers/poi/features/f1",
		`{"id":"ignored","geometry":{"type":"Point","coordinates":[10,10]},"properties":{"name":"moved"}}`)
	f = decodeData[models.Feature](t, s.mustDo(http.MethodGet, "/api/layers/poi/features/f1", ""))
	if f.Properties["name"] != "moved" {
		t.Errorf("updated feature = %+v", f)
	}

	s.mustDo(http.MethodDelete, "/api/layers/poi/features/f1", "")
	if code, _ := s.do(http.MethodGet, "/api/layers/poi/features/f1", ""); code != int(models.ResultFeatureNotFound) {
		t.Errorf("get deleted feature status = %d", code)
	}
}

func TestSpatialQueries(t *testing.T) {
	s := newTestServer(t)
	s.seedLayer()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bbox hit", http.MethodGet, "/api/layers/poi/bbox?swlng=13&swlat=52&nelng=14&nelat=53", "", 1},
		{"bbox miss", http.MethodGet, "/api/layers/poi/bbox?swlng=0&swlat=0&nelng=1&nelat=1", "", 0},
		{"sphere hit", http.MethodGet, "/api/layers/poi/sphere?lng=13.4&lat=52.5&distance=100", "", 1},
		{"sphere miss", http.MethodGet, "/api/layers/poi/sphere?lng=0&lat=0&distance=100", "", 0},
		{"within hit", http.MethodPost, "/api/layers/poi/within",
			`{"geometry":{"type":"Polygon","coordinates":[[[13,52],[14,52],[14,53],[13,53],[13,52]]]}}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env envelope
			if tt.method == http.MethodGet {
				env = s.mustDo(tt.method, tt.target, "")
			} else {
				env = s.mustDo(tt.method, tt.target, tt.body)
			}
			features := decodeData[[]*models.Feature](t, env)
			if len(features) != tt.want {
				t.Errorf("got %d features, want %d", len(features), tt.want)
			}
		})
	}
}

func TestProjects(t *testing.T) {
	s := newTestServer(t)

	p := decodeData[models.Project](t, s.mustDo(http.MethodPost, "/api/projects", `{"id":"survey","title":"Survey"}`))
	if p.ID != "survey" || p.URL == "" {
		t.Errorf("project = %+v", p)
	}

	created := decodeData[map[string]string](t, s.mustDo(http.MethodPost, "/api/projects/new?title=Fresh", ""))
	if created["id"] == "" {
		t.Fatal("new project id is empty")
	}

	projects := decodeData[[]*models.Project](t, s.mustDo(http.MethodGet, "/api/projects", ""))
	if len(projects) != 2 {
		t.Errorf("got %d projects, want 2", len(projects))
	}

	s.mustDo(http.MethodDelete, "/api/projects/survey", "")
	if s.manager.FindProject("survey") != nil {
		t.Error("project still present after delete")
	}
}

func TestKeys(t *testing.T) {
	s := newTestServer(t)

	s.mustDo(http.MethodPut, "/api/keys/weather", `{"temp":21}`)
	got := decodeData[KeyResponse](t, s.mustDo(http.MethodGet, "/api/keys/weather", ""))
	if got.Key == nil || got.Key.ID != "weather" {
		t.Errorf("key = %+v", got.Key)
	}
	if got.Value["temp"] != float64(21) {
		t.Errorf("value = %v", got.Value)
	}
	if _, ok := got.Value[models.KeyTimeField]; !ok {
		t.Errorf("value %v is missing the time stamp", got.Value)
	}

	keys := decodeData[map[string]*models.Key](t, s.mustDo(http.MethodGet, "/api/keys", ""))
	if _, ok := keys["weather"]; !ok {
		t.Errorf("keys = %v", keys)
	}

	s.mustDo(http.MethodDelete, "/api/keys/weather", "")
	if s.manager.FindKey("weather") != nil {
		t.Error("key still present after delete")
	}
}

func TestKeyEventsStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.http)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/keys/events?pattern=sensor-*", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	s.mustDo(http.MethodPut, "/api/keys/other", `{"v":0}`)
	s.mustDo(http.MethodPut, "/api/keys/sensor-1", `{"v":1}`)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			KeyID string          `json:"keyId"`
			Value models.KeyValue `json:"value"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		if ev.KeyID != "sensor-1" || ev.Value["v"] != float64(1) {
			t.Fatalf("event = %+v, want sensor-1 with v=1", ev)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}

func TestKeyEventsInvalidPattern(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(http.MethodGet, "/api/keys/events?pattern=%5B", "")
	if code != http.StatusBadRequest || env.Error == nil {
		t.Errorf("status = %d, envelope = %+v", code, env)
	}
}

func TestResources(t *testing.T) {
	s := newTestServer(t)

	s.mustDo(http.MethodPut, "/api/resources/trees", `{"title":"Trees","featureTypes":{"oak":{}}}`)

	ids := decodeData[[]string](t, s.mustDo(http.MethodGet, "/api/resources", ""))
	if len(ids) != 1 || ids[0] != "trees" {
		t.Errorf("ids = %v", ids)
	}
	rf := decodeData[models.ResourceFile](t, s.mustDo(http.MethodGet, "/api/resources/trees", ""))
	if rf.Title != "Trees" {
		t.Errorf("resource = %+v", rf)
	}

	code, env := s.do(http.MethodGet, "/api/resources/missing", "")
	if code != int(models.ResultResourceNotFound) || env.Error.Code != "RESOURCE_NOT_FOUND" {
		t.Errorf("missing resource: status = %d, error = %+v", code, env.Error)
	}
}

func TestAuthRequired(t *testing.T) {
	m := manager.New(manager.Config{DataDir: t.TempDir(), SaveDelay: time.Hour})
	if err := m.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)

	jwtManager, err := auth.NewJWTManager(strings.Repeat("s", auth.MinSecretLength), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter(NewHandler(m, nil, HandlerConfig{}), auth.NewMiddleware(auth.ModeJWT, jwtManager, nil), nil).Setup()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/layers", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", rec.Code)
	}

	token, err := jwtManager.GenerateToken("ann", "editor")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/layers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health without token: status = %d, want 200", rec.Code)
	}
}

func TestAuthzRoles(t *testing.T) {
	m := manager.New(manager.Config{DataDir: t.TempDir(), SaveDelay: time.Hour})
	if err := m.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)

	jwtManager, err := auth.NewJWTManager(strings.Repeat("s", auth.MinSecretLength), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	enforcer, err := authz.NewEnforcer(authz.Config{})
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter(NewHandler(m, nil, HandlerConfig{}), auth.NewMiddleware(auth.ModeJWT, jwtManager, nil), nil).
		WithAuthz(authz.NewMiddleware(enforcer)).
		Setup()

	tests := []struct {
		name      string
		role      string
		method    string
		path      string
		forbidden bool
	}{
		{"viewer lists layers", auth.RoleViewer, http.MethodGet, "/api/layers", false},
		{"viewer deletes layer", auth.RoleViewer, http.MethodDelete, "/api/layers/roads", true},
		{"editor deletes layer", auth.RoleEditor, http.MethodDelete, "/api/layers/roads", false},
		{"editor deletes project", auth.RoleEditor, http.MethodDelete, "/api/projects/p1", true},
		{"admin deletes project", auth.RoleAdmin, http.MethodDelete, "/api/projects/p1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := jwtManager.GenerateToken("ann", tt.role)
			if err != nil {
				t.Fatal(err)
			}
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if got := rec.Code == http.StatusForbidden; got != tt.forbidden {
				t.Errorf("status = %d, forbidden = %v, want %v", rec.Code, got, tt.forbidden)
			}
		})
	}
}

func TestAwaitTimeout(t *testing.T) {
	_, err := await(context.Background(), 10*time.Millisecond, func(context.Context, models.Callback) {})
	if err != errTimeout {
		t.Errorf("await() error = %v, want errTimeout", err)
	}
}
