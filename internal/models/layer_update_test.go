// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package models

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func TestLayerUpdateDecode(t *testing.T) {
	t.Parallel()

	t.Run("updateFeature", func(t *testing.T) {
		lu, err := NewFeatureUpdate("roads", &Feature{ID: "f1", Type: FeatureType})
		if err != nil {
			t.Fatalf("NewFeatureUpdate: %v", err)
		}
		f, err := lu.DecodeFeature()
		if err != nil {
			t.Fatalf("DecodeFeature: %v", err)
		}
		if f.ID != "f1" {
			t.Errorf("feature id = %q", f.ID)
		}
	})

	t.Run("deleteFeature bare id", func(t *testing.T) {
		lu := &LayerUpdate{LayerID: "roads", Action: ActionDeleteFeature, Object: json.RawMessage(`"f2"`)}
		id, err := lu.DecodeFeatureID()
		if err != nil || id != "f2" {
			t.Errorf("DecodeFeatureID = %q, %v", id, err)
		}
	})

	t.Run("deleteFeature object", func(t *testing.T) {
		lu := &LayerUpdate{LayerID: "roads", Action: ActionDeleteFeature, Object: json.RawMessage(`{"id":"f3"}`)}
		id, err := lu.DecodeFeatureID()
		if err != nil || id != "f3" {
			t.Errorf("DecodeFeatureID = %q, %v", id, err)
		}
	})

	t.Run("updateLog", func(t *testing.T) {
		lu, err := NewLogUpdate("roads", "f1", map[string][]Log{"speed": {{TS: 1, Value: 10}}})
		if err != nil {
			t.Fatalf("NewLogUpdate: %v", err)
		}
		logs, err := lu.DecodeLogs()
		if err != nil {
			t.Fatalf("DecodeLogs: %v", err)
		}
		if logs.FeatureID != "f1" || len(logs.Logs["speed"]) != 1 {
			t.Errorf("DecodeLogs = %+v", logs)
		}
	})
}

func TestLayerUpdateValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lu      LayerUpdate
		wantErr bool
	}{
		{"valid", LayerUpdate{LayerID: "a", Action: ActionUpdateFeature, Object: json.RawMessage(`{}`)}, false},
		{"missing layer", LayerUpdate{Action: ActionUpdateFeature, Object: json.RawMessage(`{}`)}, true},
		{"unknown action", LayerUpdate{LayerID: "a", Action: "explode", Object: json.RawMessage(`{}`)}, true},
		{"missing object", LayerUpdate{LayerID: "a", Action: ActionDeleteFeature}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lu.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLayerUpdate) {
				t.Errorf("error %v does not wrap ErrInvalidLayerUpdate", err)
			}
		})
	}
}
