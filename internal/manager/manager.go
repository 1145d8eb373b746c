// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/debounce"
	"github.com/tomtom215/layersync/internal/directory"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/resources"
)

// Config controls directory locations and dispatch defaults.
type Config struct {
	// DataDir is the base directory for the directory files and resources.
	DataDir string
	// LayersFile overrides <DataDir>/layers.json.
	LayersFile string
	// ProjectsFile overrides <DataDir>/projects.json.
	ProjectsFile string
	// ResourceDir overrides <DataDir>/resourceTypes.
	ResourceDir string
	// DefaultStorage is used for entities without a storage field.
	DefaultStorage string
	// KeyStorage is assigned to keys created by UpdateKey. Empty means DefaultStorage.
	KeyStorage string
	// SaveDelay is the quiet window before directory files are written.
	SaveDelay time.Duration
}

// DefaultSaveDelay is the directory file debounce window.
const DefaultSaveDelay = time.Second

func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LayersFile == "" {
		c.LayersFile = filepath.Join(c.DataDir, "layers.json")
	}
	if c.ProjectsFile == "" {
		c.ProjectsFile = filepath.Join(c.DataDir, "projects.json")
	}
	if c.ResourceDir == "" {
		c.ResourceDir = filepath.Join(c.DataDir, "resourceTypes")
	}
	if c.DefaultStorage == "" {
		c.DefaultStorage = "memory"
	}
	if c.SaveDelay <= 0 {
		c.SaveDelay = DefaultSaveDelay
	}
	return c
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces the UUID generator used for new entities.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithFailureHook observes interface connector failures.
func WithFailureHook(hook connector.FailureHook) Option {
	return func(m *Manager) { m.fanout = connector.NewFanOut(hook) }
}

// Manager routes operations between connectors and owns the directories.
type Manager struct {
	cfg      Config
	registry *connector.Registry
	fanout   *connector.FanOut
	catalog  *resources.Catalog

	mu       sync.RWMutex
	layers   map[string]*models.LayerDefinition
	projects map[string]*models.Project
	keys     map[string]*models.Key

	layersFile   *directory.File[*models.LayerDefinition]
	projectsFile *directory.File[*models.Project]
	saveLayers   *debounce.Scheduler
	saveProjects *debounce.Scheduler

	subs *subscriptions

	now   func() time.Time
	newID func() string
}

// New creates a Manager. Call Init to load the directories and resources.
func New(cfg Config, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:          cfg,
		registry:     connector.NewRegistry(cfg.DefaultStorage),
		fanout:       connector.NewFanOut(nil),
		catalog:      resources.NewCatalog(cfg.ResourceDir),
		layers:       make(map[string]*models.LayerDefinition),
		projects:     make(map[string]*models.Project),
		keys:         make(map[string]*models.Key),
		layersFile:   directory.NewFile[*models.LayerDefinition](cfg.LayersFile),
		projectsFile: directory.NewFile[*models.Project](cfg.ProjectsFile),
		subs:         newSubscriptions(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.saveLayers = debounce.New(cfg.SaveDelay, m.persistLayers)
	m.saveProjects = debounce.New(cfg.SaveDelay, m.persistProjects)
	return m
}

// Init starts loading resources in the background and loads the layer and
// project directory files. Unreadable directory files are logged and the
// manager starts with an empty directory.
func (m *Manager) Init(_ context.Context) error {
	if err := m.catalog.Load(); err != nil {
		return fmt.Errorf("load resources: %w", err)
	}

	layers, err := m.layersFile.Load()
	if err != nil {
		logging.Error().Err(err).Str("file", m.layersFile.Path()).Msg("Layer directory unreadable, starting empty")
	}
	projects, err := m.projectsFile.Load()
	if err != nil {
		logging.Error().Err(err).Str("file", m.projectsFile.Path()).Msg("Project directory unreadable, starting empty")
	}

	m.mu.Lock()
	for id, def := range layers {
		if def == nil {
			continue
		}
		if def.ID == "" {
			def.ID = id
		}
		m.layers[strings.ToLower(def.ID)] = def
	}
	for id, p := range projects {
		if p == nil {
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		m.projects[p.ID] = p
	}
	m.mu.Unlock()

	m.updateSizes()
	logging.Info().
		Int("layers", len(layers)).
		Int("projects", len(projects)).
		Str("data_dir", m.cfg.DataDir).
		Msg("Manager initialized")
	return nil
}

// Close writes any pending directory changes.
func (m *Manager) Close() {
	m.saveLayers.Flush()
	m.saveProjects.Flush()
}

// Registry exposes the connector registry.
func (m *Manager) Registry() *connector.Registry {
	return m.registry
}

// Resources exposes the resource catalog.
func (m *Manager) Resources() *resources.Catalog {
	return m.catalog
}

// AddConnector registers and initializes a connector, then introduces every
// known layer and project to it.
func (m *Manager) AddConnector(id string, c connector.Connector, opts connector.Options) error {
	if err := m.registry.Add(id, c, m, opts); err != nil {
		return err
	}
	meta := models.Meta{Source: id}
	for _, def := range m.Layers() {
		c.InitLayer(def.Layer(), meta)
	}
	for _, p := range m.Projects() {
		c.InitProject(p, meta)
	}
	return nil
}

// FindStorageForLayerID resolves a layer id to its storage connector. Unknown
// layers resolve to the default storage.
func (m *Manager) FindStorageForLayerID(layerID string) connector.Connector {
	storage := ""
	if def := m.FindLayer(layerID); def != nil {
		storage = def.Storage
	}
	return m.registry.Resolve(storage)
}

// FindStorageForProjectID resolves a project id to its storage connector.
func (m *Manager) FindStorageForProjectID(projectID string) connector.Connector {
	storage := ""
	if p := m.FindProject(projectID); p != nil {
		storage = p.Storage
	}
	return m.registry.Resolve(storage)
}

// FindStorageForKeyID resolves a key id to its storage connector.
func (m *Manager) FindStorageForKeyID(keyID string) connector.Connector {
	storage := ""
	if k := m.FindKey(keyID); k != nil {
		storage = k.Storage
	}
	return m.registry.Resolve(storage)
}

// observe wraps a caller callback so it runs at most once and is counted.
func (m *Manager) observe(op string, cb models.Callback) models.Callback {
	var once sync.Once
	return func(res *models.CallbackResult) {
		if res == nil {
			res = models.Failure(models.ResultError, "no result")
		}
		fired := false
		once.Do(func() {
			fired = true
			metrics.RecordDispatch(op, res.Result.String())
			if cb != nil {
				cb(res)
			}
		})
		if !fired {
			logging.Warn().Str("op", op).Msg("Callback invoked more than once, ignoring")
		}
	}
}

// timed measures a storage call from now until its callback.
func timed(storage connector.Connector, op string, cb models.Callback) models.Callback {
	start := time.Now()
	id := storage.ID()
	return func(res *models.CallbackResult) {
		metrics.RecordStorageOp(id, op, time.Since(start), res.Err())
		cb(res)
	}
}

func (m *Manager) notifyInterfaces(op string, meta models.Meta, fn func(c connector.Connector, done models.Callback)) {
	m.fanout.Each(m.registry.Interfaces(meta), op, fn)
}

func (m *Manager) stamp() int64 {
	return m.now().UnixMilli()
}

func (m *Manager) updateSizes() {
	m.mu.RLock()
	nl, np, nk := len(m.layers), len(m.projects), len(m.keys)
	m.mu.RUnlock()
	metrics.SetDirectorySize("layers", nl)
	metrics.SetDirectorySize("projects", np)
	metrics.SetDirectorySize("keys", nk)
}

func (m *Manager) persistLayers() {
	m.mu.RLock()
	snapshot := make(map[string]*models.LayerDefinition, len(m.layers))
	for id, def := range m.layers {
		snapshot[id] = def.Clone()
	}
	m.mu.RUnlock()

	err := m.layersFile.Save(snapshot)
	metrics.RecordDirectoryWrite("layers", err)
	if err != nil {
		logging.Error().Err(err).Str("file", m.layersFile.Path()).Msg("Saving layer directory failed")
		return
	}
	logging.Debug().Int("layers", len(snapshot)).Msg("Layer directory saved")
}

func (m *Manager) persistProjects() {
	m.mu.RLock()
	snapshot := make(map[string]*models.Project, len(m.projects))
	for id, p := range m.projects {
		snapshot[id] = p.Clone()
	}
	m.mu.RUnlock()

	err := m.projectsFile.Save(snapshot)
	metrics.RecordDirectoryWrite("projects", err)
	if err != nil {
		logging.Error().Err(err).Str("file", m.projectsFile.Path()).Msg("Saving project directory failed")
		return
	}
	logging.Debug().Int("projects", len(snapshot)).Msg("Project directory saved")
}

func layerKey(id string) string {
	return strings.ToLower(id)
}

func sortedKeys[V any](in map[string]V) []string {
	ids := make([]string, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func storageNotFound() *models.CallbackResult {
	return models.Failure(models.ResultError, "storage not found")
}
