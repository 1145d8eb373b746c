// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package manager

import (
	"context"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
)

// FindProject returns a copy of the project directory entry, or nil.
func (m *Manager) FindProject(projectID string) *models.Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.projects[projectID].Clone()
}

// Projects returns every project ordered by id.
func (m *Manager) Projects() []*models.Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Project, 0, len(m.projects))
	for _, id := range sortedKeys(m.projects) {
		out = append(out, m.projects[id].Clone())
	}
	return out
}

// AddProject registers a new project. An existing id reports
// ResultProjectAlreadyExists and changes nothing.
func (m *Manager) AddProject(ctx context.Context, p *models.Project, meta models.Meta, cb models.Callback) {
	cb = m.observe("addProject", cb)
	if p == nil {
		cb(models.Failure(models.ResultError, "project is required"))
		return
	}
	if p.ID == "" {
		p.ID = m.newID()
	}
	if p.Title == "" {
		p.Title = p.ID
	}

	s := m.registry.Resolve(p.Storage)
	p.Storage = ""
	if s != nil {
		p.Storage = s.ID()
	}

	m.mu.Lock()
	if _, exists := m.projects[p.ID]; exists {
		m.mu.Unlock()
		cb(models.Failuref(models.ResultProjectAlreadyExists, "project %s already exists", p.ID))
		return
	}
	def := p.Definition()
	m.projects[p.ID] = def
	m.mu.Unlock()
	p.URL = def.URL

	logging.CtxInfo(ctx).Str("project", p.ID).Str("storage", p.Storage).Msg("Adding project")
	m.updateSizes()
	m.saveProjects.Schedule()

	m.notifyInterfaces("addProject", meta, func(c connector.Connector, done models.Callback) {
		c.InitProject(p, meta)
		c.AddProject(ctx, p, meta, done)
	})

	if s == nil {
		cb(&models.CallbackResult{Result: models.ResultOK, Project: p.Clone()})
		return
	}
	s.AddProject(ctx, p, meta, timed(s, "addProject", cb))
}

// GetNewProject creates a connected project with a generated id and the given
// title on the default storage, and returns its id.
func (m *Manager) GetNewProject(ctx context.Context, title string, meta models.Meta) string {
	p := &models.Project{
		ID:        m.newID(),
		Title:     title,
		Connected: true,
	}
	m.AddProject(ctx, p, meta, nil)
	return p.ID
}

// DeleteProject asks the owning storage to delete the project. The directory
// entry is removed when storage answers, whatever the answer.
func (m *Manager) DeleteProject(ctx context.Context, projectID string, meta models.Meta, cb models.Callback) {
	cb = m.observe("deleteProject", cb)

	finish := func(res *models.CallbackResult) {
		m.mu.Lock()
		delete(m.projects, projectID)
		m.mu.Unlock()
		m.updateSizes()
		m.saveProjects.Schedule()

		m.notifyInterfaces("deleteProject", meta, func(c connector.Connector, done models.Callback) {
			c.DeleteProject(ctx, projectID, meta, done)
		})
		logging.CtxInfo(ctx).Str("project", projectID).Int("result", int(res.Result)).Msg("Project deleted")
		cb(res)
	}

	s := m.FindStorageForProjectID(projectID)
	if s == nil {
		finish(models.OK())
		return
	}
	s.DeleteProject(ctx, projectID, meta, timed(s, "deleteProject", finish))
}
