// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package models

// ProjectURLPrefix is the REST path prefix used to build a project's url.
const ProjectURLPrefix = "/api/projects/"

// Project groups layers under a display title. The same record is used in the
// project directory and in the persisted project directory file.
type Project struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo"`
	Connected   bool   `json:"connected"`
	Storage     string `json:"storage"`
	URL         string `json:"url,omitempty"`
}

// Definition returns the directory form of the project with its url set.
func (p *Project) Definition() *Project {
	c := *p
	c.URL = ProjectURLPrefix + p.ID
	return &c
}

// Clone returns a copy of the project.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
