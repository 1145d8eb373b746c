// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package storage

import (
	"errors"
	"fmt"

	"github.com/tomtom215/layersync/internal/models"
)

// LayerNotFound returns the error for a missing layer.
func LayerNotFound(layerID string) error {
	return &models.CodeError{Code: models.ResultLayerNotFound, Message: fmt.Sprintf("layer %s not found", layerID)}
}

// LayerExists returns the error for a layer that is already stored.
func LayerExists(layerID string) error {
	return &models.CodeError{Code: models.ResultLayerAlreadyExists, Message: fmt.Sprintf("layer %s already exists", layerID)}
}

// FeatureNotFound returns the error for a missing feature.
func FeatureNotFound(layerID, featureID string) error {
	return &models.CodeError{Code: models.ResultFeatureNotFound, Message: fmt.Sprintf("feature %s not found in layer %s", featureID, layerID)}
}

// ProjectNotFound returns the error for a missing project.
func ProjectNotFound(projectID string) error {
	return &models.CodeError{Code: models.ResultProjectNotFound, Message: fmt.Sprintf("project %s not found", projectID)}
}

// ProjectExists returns the error for a project that is already stored.
func ProjectExists(projectID string) error {
	return &models.CodeError{Code: models.ResultProjectAlreadyExists, Message: fmt.Sprintf("project %s already exists", projectID)}
}

// KeyNotFound returns the error for a missing key.
func KeyNotFound(keyID string) error {
	return &models.CodeError{Code: models.ResultError, Message: fmt.Sprintf("key %s not found", keyID)}
}

// FailureFor converts an error into a callback result. A *models.CodeError
// keeps its code; anything else becomes ResultError.
func FailureFor(err error) *models.CallbackResult {
	var re *models.CodeError
	if errors.As(err, &re) {
		return models.Failure(re.Code, re.Message)
	}
	return models.Failure(models.ResultError, err.Error())
}

// Reply answers cb with OK when err is nil and with FailureFor(err) otherwise.
func Reply(cb models.Callback, err error) {
	if cb == nil {
		return
	}
	if err != nil {
		cb(FailureFor(err))
		return
	}
	cb(models.OK())
}
