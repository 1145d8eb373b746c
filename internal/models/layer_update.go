// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package models

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// LayerUpdateAction names the change a LayerUpdate carries.
type LayerUpdateAction string

const (
	ActionUpdateFeature LayerUpdateAction = "updateFeature"
	ActionDeleteFeature LayerUpdateAction = "deleteFeature"
	ActionUpdateLog     LayerUpdateAction = "updateLog"
)

// LayerUpdate is the envelope interface connectors exchange with clients.
//
// The object depends on the action:
//   - updateFeature: the full feature
//   - deleteFeature: the deleted feature's id (a JSON string)
//   - updateLog: {"featureId": ..., "logs": {prop: [log...]}}
type LayerUpdate struct {
	LayerID   string            `json:"layerId"`
	Action    LayerUpdateAction `json:"action"`
	FeatureID string            `json:"featureId,omitempty"`
	Object    json.RawMessage   `json:"object,omitempty"`
}

// LogUpdate is the object of an updateLog envelope.
type LogUpdate struct {
	FeatureID string           `json:"featureId"`
	Logs      map[string][]Log `json:"logs"`
}

// ErrInvalidLayerUpdate is returned when an envelope cannot be decoded.
var ErrInvalidLayerUpdate = errors.New("invalid layer update")

// NewFeatureUpdate builds an updateFeature envelope.
func NewFeatureUpdate(layerID string, f *Feature) (*LayerUpdate, error) {
	obj, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal feature: %w", err)
	}
	return &LayerUpdate{LayerID: layerID, Action: ActionUpdateFeature, FeatureID: f.ID, Object: obj}, nil
}

// NewDeleteUpdate builds a deleteFeature envelope.
func NewDeleteUpdate(layerID, featureID string) (*LayerUpdate, error) {
	obj, err := json.Marshal(featureID)
	if err != nil {
		return nil, fmt.Errorf("marshal feature id: %w", err)
	}
	return &LayerUpdate{LayerID: layerID, Action: ActionDeleteFeature, FeatureID: featureID, Object: obj}, nil
}

// NewLogUpdate builds an updateLog envelope.
func NewLogUpdate(layerID, featureID string, logs map[string][]Log) (*LayerUpdate, error) {
	obj, err := json.Marshal(LogUpdate{FeatureID: featureID, Logs: logs})
	if err != nil {
		return nil, fmt.Errorf("marshal logs: %w", err)
	}
	return &LayerUpdate{LayerID: layerID, Action: ActionUpdateLog, FeatureID: featureID, Object: obj}, nil
}

// Validate checks the envelope's required fields.
func (u *LayerUpdate) Validate() error {
	if u.LayerID == "" {
		return fmt.Errorf("%w: missing layerId", ErrInvalidLayerUpdate)
	}
	switch u.Action {
	case ActionUpdateFeature, ActionDeleteFeature, ActionUpdateLog:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidLayerUpdate, u.Action)
	}
	if len(u.Object) == 0 && u.FeatureID == "" {
		return fmt.Errorf("%w: missing object", ErrInvalidLayerUpdate)
	}
	return nil
}

// DecodeFeature returns the feature of an updateFeature envelope.
func (u *LayerUpdate) DecodeFeature() (*Feature, error) {
	var f Feature
	if err := json.Unmarshal(u.Object, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayerUpdate, err)
	}
	if f.ID == "" {
		f.ID = u.FeatureID
	}
	if f.ID == "" {
		return nil, fmt.Errorf("%w: feature without id", ErrInvalidLayerUpdate)
	}
	return &f, nil
}

// DecodeFeatureID returns the feature id of a deleteFeature envelope. The
// object may be a bare id string or a feature object.
func (u *LayerUpdate) DecodeFeatureID() (string, error) {
	if len(u.Object) > 0 {
		var id string
		if err := json.Unmarshal(u.Object, &id); err == nil && id != "" {
			return id, nil
		}
		var f struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(u.Object, &f); err == nil && f.ID != "" {
			return f.ID, nil
		}
	}
	if u.FeatureID != "" {
		return u.FeatureID, nil
	}
	return "", fmt.Errorf("%w: missing feature id", ErrInvalidLayerUpdate)
}

// DecodeLogs returns the object of an updateLog envelope.
func (u *LayerUpdate) DecodeLogs() (*LogUpdate, error) {
	var lu LogUpdate
	if err := json.Unmarshal(u.Object, &lu); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayerUpdate, err)
	}
	if lu.FeatureID == "" {
		lu.FeatureID = u.FeatureID
	}
	if lu.FeatureID == "" {
		return nil, fmt.Errorf("%w: logs without featureId", ErrInvalidLayerUpdate)
	}
	return &lu, nil
}
