// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package bus

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Action names the mutation an Event carries.
type Action string

const (
	ActionUpdateLayer    Action = "updateLayer"
	ActionDeleteLayer    Action = "deleteLayer"
	ActionUpdateFeature  Action = "updateFeature"
	ActionDeleteFeature  Action = "deleteFeature"
	ActionUpdateLogs     Action = "updateLogs"
	ActionUpdateProperty Action = "updateProperty"
	ActionAddProject     Action = "addProject"
	ActionDeleteProject  Action = "deleteProject"
	ActionUpdateKey      Action = "updateKey"
	ActionDeleteKey      Action = "deleteKey"
)

// ErrInvalidEvent is returned for events that cannot be applied.
var ErrInvalidEvent = errors.New("invalid bus event")

// Event is one mutation on the bus. Object holds the JSON encoded payload:
// the layer, feature, logs map, property value, project or key value.
type Event struct {
	ID        string          `json:"id" msgpack:"id"`
	Origin    string          `json:"origin" msgpack:"origin"`
	Action    Action          `json:"action" msgpack:"action"`
	LayerID   string          `json:"layerId,omitempty" msgpack:"layerId,omitempty"`
	FeatureID string          `json:"featureId,omitempty" msgpack:"featureId,omitempty"`
	Property  string          `json:"property,omitempty" msgpack:"property,omitempty"`
	UseLog    bool            `json:"useLog,omitempty" msgpack:"useLog,omitempty"`
	KeyID     string          `json:"keyId,omitempty" msgpack:"keyId,omitempty"`
	ProjectID string          `json:"projectId,omitempty" msgpack:"projectId,omitempty"`
	User      string          `json:"user,omitempty" msgpack:"user,omitempty"`
	Time      int64           `json:"time" msgpack:"time"`
	Object    json.RawMessage `json:"object,omitempty" msgpack:"object,omitempty"`
}

// Validate checks the fields the action needs.
func (e *Event) Validate() error {
	if e.Origin == "" {
		return fmt.Errorf("%w: missing origin", ErrInvalidEvent)
	}
	need := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("%w: %s requires %s", ErrInvalidEvent, e.Action, field)
		}
		return nil
	}
	switch e.Action {
	case ActionUpdateLayer, ActionAddProject, ActionUpdateKey:
		if len(e.Object) == 0 {
			return fmt.Errorf("%w: %s requires object", ErrInvalidEvent, e.Action)
		}
		if e.Action == ActionUpdateKey {
			return need("keyId", e.KeyID)
		}
		return nil
	case ActionDeleteLayer:
		return need("layerId", e.LayerID)
	case ActionUpdateFeature:
		if len(e.Object) == 0 {
			return fmt.Errorf("%w: %s requires object", ErrInvalidEvent, e.Action)
		}
		return need("layerId", e.LayerID)
	case ActionDeleteFeature, ActionUpdateLogs:
		if err := need("layerId", e.LayerID); err != nil {
			return err
		}
		return need("featureId", e.FeatureID)
	case ActionUpdateProperty:
		if err := need("layerId", e.LayerID); err != nil {
			return err
		}
		if err := need("featureId", e.FeatureID); err != nil {
			return err
		}
		return need("property", e.Property)
	case ActionDeleteProject:
		return need("projectId", e.ProjectID)
	case ActionDeleteKey:
		return need("keyId", e.KeyID)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	}
}

// decodeObject unmarshals the event's object into v.
func (e *Event) decodeObject(v any) error {
	if err := json.Unmarshal(e.Object, v); err != nil {
		return fmt.Errorf("%w: %s object: %v", ErrInvalidEvent, e.Action, err)
	}
	return nil
}
