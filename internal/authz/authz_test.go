// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package authz

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/layersync/internal/auth"
	"github.com/tomtom215/layersync/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func newEnforcer(t *testing.T, cfg Config) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(cfg)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	return e
}

func TestEnforcerDefaultPolicy(t *testing.T) {
	e := newEnforcer(t, Config{})

	tests := []struct {
		role   string
		path   string
		action string
		want   bool
	}{
		{auth.RoleViewer, "/api/layers", ActionRead, true},
		{auth.RoleViewer, "/api/layers/roads/features", ActionRead, true},
		{auth.RoleViewer, "/api/layers", ActionWrite, false},
		{auth.RoleViewer, "/api/keys/k1", ActionDelete, false},
		{auth.RoleEditor, "/api/layers", ActionWrite, true},
		{auth.RoleEditor, "/api/layers/roads", ActionDelete, true},
		{auth.RoleEditor, "/api/keys/k1", ActionWrite, true},
		{auth.RoleEditor, "/api/projects", ActionRead, true},
		{auth.RoleEditor, "/api/projects", ActionWrite, false},
		{auth.RoleEditor, "/api/resources/icons", ActionWrite, false},
		{auth.RoleAdmin, "/api/projects/p1", ActionDelete, true},
		{auth.RoleAdmin, "/api/resources/icons", ActionWrite, true},
		{auth.RoleAdmin, "/api/layers", ActionRead, true},
		{"", "/api/layers", ActionRead, true},
		{"", "/api/layers", ActionWrite, false},
		{"guest", "/api/layers", ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.action+" "+tt.path, func(t *testing.T) {
			got, err := e.Enforce(tt.role, tt.path, tt.action)
			if err != nil {
				t.Fatalf("Enforce: %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce(%q, %q, %q) = %v, want %v", tt.role, tt.path, tt.action, got, tt.want)
			}
		})
	}
}

func TestEnforcerDefaultRole(t *testing.T) {
	e := newEnforcer(t, Config{DefaultRole: auth.RoleEditor})
	allowed, err := e.Enforce("", "/api/layers", ActionWrite)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("default editor role should write layers")
	}
}

func TestEnforcerPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	policy := "p, mapper, /api/layers*, read\np, mapper, /api/layers*, write\n"
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatal(err)
	}
	e := newEnforcer(t, Config{PolicyPath: path})

	if ok, _ := e.Enforce("mapper", "/api/layers/roads", ActionWrite); !ok {
		t.Error("mapper should write layers")
	}
	if ok, _ := e.Enforce("mapper", "/api/keys", ActionRead); ok {
		t.Error("mapper should not read keys")
	}
	if ok, _ := e.Enforce(auth.RoleAdmin, "/api/layers", ActionRead); ok {
		t.Error("built-in policy should not apply with a policy file")
	}
}

func TestEnforcerMissingPolicyFile(t *testing.T) {
	if _, err := NewEnforcer(Config{PolicyPath: filepath.Join(t.TempDir(), "missing.csv")}); err == nil {
		t.Fatal("expected error for missing policy file")
	}
}

func TestAddRoleForUser(t *testing.T) {
	e := newEnforcer(t, Config{})
	if err := e.AddRoleForUser("alice", auth.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.Enforce("alice", "/api/projects", ActionWrite); !ok {
		t.Error("alice should inherit admin")
	}
}

func TestLoadPolicyInvalidLine(t *testing.T) {
	if err := loadPolicy(newEnforcer(t, Config{}).enforcer, "p, viewer"); err == nil {
		t.Fatal("expected error for short policy line")
	}
}

func TestMiddlewareAuthorize(t *testing.T) {
	mw := NewMiddleware(newEnforcer(t, Config{}))
	var called bool
	handler := mw.Authorize(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		path       string
		claims     *auth.Claims
		wantStatus int
	}{
		{"viewer reads", http.MethodGet, "/api/layers", &auth.Claims{Username: "v", Role: auth.RoleViewer}, http.StatusOK},
		{"viewer writes", http.MethodPost, "/api/layers", &auth.Claims{Username: "v", Role: auth.RoleViewer}, http.StatusForbidden},
		{"editor updates key", http.MethodPut, "/api/keys/k1", &auth.Claims{Username: "e", Role: auth.RoleEditor}, http.StatusOK},
		{"editor deletes project", http.MethodDelete, "/api/projects/p1", &auth.Claims{Username: "e", Role: auth.RoleEditor}, http.StatusForbidden},
		{"admin deletes project", http.MethodDelete, "/api/projects/p1", &auth.Claims{Username: "a", Role: auth.RoleAdmin}, http.StatusOK},
		{"no claims", http.MethodGet, "/api/layers", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.claims != nil {
				req = req.WithContext(auth.ContextWithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
		})
	}
}

func TestMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:     ActionRead,
		http.MethodHead:    ActionRead,
		http.MethodPost:    ActionWrite,
		http.MethodPut:     ActionWrite,
		http.MethodPatch:   ActionWrite,
		http.MethodDelete:  ActionDelete,
		http.MethodOptions: ActionRead,
	}
	for method, want := range tests {
		if got := methodToAction(method); got != want {
			t.Errorf("methodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}
