// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package manager

import (
	"context"
	"fmt"

	"github.com/tomtom215/layersync/internal/models"
)

// GetResource returns a resource file once the catalog has finished loading.
func (m *Manager) GetResource(ctx context.Context, id string) (*models.ResourceFile, error) {
	if err := m.catalog.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for resources: %w", err)
	}
	rf, ok := m.catalog.Get(id)
	if !ok {
		return nil, &models.CodeError{Code: models.ResultResourceNotFound, Message: fmt.Sprintf("resource %s not found", id)}
	}
	return rf, nil
}

// UpdateResource replaces a resource file and writes it to disk.
func (m *Manager) UpdateResource(ctx context.Context, id string, rf *models.ResourceFile) error {
	if rf == nil {
		return &models.CodeError{Code: models.ResultError, Message: "resource is required"}
	}
	if err := m.catalog.Wait(ctx); err != nil {
		return fmt.Errorf("wait for resources: %w", err)
	}
	return m.catalog.Update(id, rf)
}

// ResourceIDs lists the loaded resource ids.
func (m *Manager) ResourceIDs(ctx context.Context) ([]string, error) {
	if err := m.catalog.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for resources: %w", err)
	}
	return m.catalog.IDs(), nil
}
