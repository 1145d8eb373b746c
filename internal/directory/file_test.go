// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package directory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/layersync/internal/models"
)

func TestFileLoadMissing(t *testing.T) {
	t.Parallel()

	f := NewFile[*models.LayerDefinition](filepath.Join(t.TempDir(), "layers.json"))
	entries, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("Load of missing file = %v, want empty map", entries)
	}
}

func TestFileSaveThenLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "layers.json")
	f := NewFile[*models.LayerDefinition](path)

	in := map[string]*models.LayerDefinition{
		"roads": {ID: "roads", Title: "Roads", Type: "geojson", Storage: "memory", URL: "/api/layers/roads", Updated: 10},
	}
	if err := f.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := out["roads"]
	if got == nil || *got != *in["roads"] {
		t.Errorf("Load = %+v, want %+v", got, in["roads"])
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFileLoadCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "projects.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := NewFile[*models.Project](path).Load()
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load error = %v, want ErrCorrupt", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("corrupt Load = %v, want empty map", entries)
	}
}

func TestFileLoadEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "layers.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := NewFile[*models.LayerDefinition](path).Load()
	if err != nil || len(entries) != 0 {
		t.Errorf("Load of empty file = %v, %v", entries, err)
	}
}
