// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package file implements a storage connector that serves from memory and
// writes every layer to its own JSON file.
//
// Layout under the connector directory:
//
//	layers/<layer id>.json   full layer with features
//	projects.json            projects by id
//	keys.json                keys and their last values
//
// Writes are debounced per layer, so a burst of feature edits produces one
// file write. Close flushes pending writes.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/debounce"
	"github.com/tomtom215/layersync/internal/directory"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage/memory"
)

// DefaultSaveDelay is the per-layer write debounce window.
const DefaultSaveDelay = time.Second

// Connector is the file-backed storage connector.
type Connector struct {
	*memory.Connector

	dir   string
	delay time.Duration

	projectsFile *directory.File[*models.Project]
	keysFile     *directory.File[memory.KeyEntry]
	saveProjects *debounce.Scheduler
	saveKeys     *debounce.Scheduler

	mu         sync.Mutex
	saveLayers map[string]*debounce.Scheduler
}

// New creates a file connector rooted at dir. delay <= 0 uses DefaultSaveDelay.
func New(dir string, delay time.Duration, opts ...memory.Option) *Connector {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	c := &Connector{
		dir:          dir,
		delay:        delay,
		projectsFile: directory.NewFile[*models.Project](filepath.Join(dir, "projects.json")),
		keysFile:     directory.NewFile[memory.KeyEntry](filepath.Join(dir, "keys.json")),
		saveLayers:   make(map[string]*debounce.Scheduler),
	}
	c.Connector = memory.New(append(opts, memory.WithObserver(c.onChange))...)
	c.saveProjects = debounce.New(delay, c.writeProjects)
	c.saveKeys = debounce.New(delay, c.writeKeys)
	return c
}

// Init loads every stored layer, project and key.
func (c *Connector) Init(_ connector.Dispatcher, opts connector.Options) error {
	if dir := opts.String("path", ""); dir != "" && dir != c.dir {
		return fmt.Errorf("file storage: configured path %q does not match %q", dir, c.dir)
	}
	layersDir := c.layersDir()
	if err := os.MkdirAll(layersDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", layersDir, err)
	}

	entries, err := os.ReadDir(layersDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", layersDir, err)
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := c.loadLayer(filepath.Join(layersDir, e.Name())); err != nil {
			logging.Warn().Err(err).Str("file", e.Name()).Msg("Skipping unreadable layer file")
			continue
		}
		loaded++
	}

	projects, err := c.projectsFile.Load()
	if err != nil {
		logging.Warn().Err(err).Msg("Project file unreadable, starting without stored projects")
	}
	for _, p := range projects {
		if p != nil {
			c.RestoreProject(p)
		}
	}
	keys, err := c.keysFile.Load()
	if err != nil {
		logging.Warn().Err(err).Msg("Key file unreadable, starting without stored keys")
	}
	for _, k := range keys {
		if k.Key != nil {
			c.RestoreKey(k.Key, k.Value)
		}
	}

	logging.Info().
		Str("connector", c.ID()).
		Str("dir", c.dir).
		Int("layers", loaded).
		Int("projects", len(projects)).
		Int("keys", len(keys)).
		Msg("File storage loaded")
	return nil
}

func (c *Connector) loadLayer(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var l models.Layer
	if err := json.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if l.ID == "" {
		return fmt.Errorf("%s: layer without id", path)
	}
	c.Restore(&l)
	return nil
}

// Close writes every pending change.
func (c *Connector) Close() {
	c.mu.Lock()
	schedulers := make([]*debounce.Scheduler, 0, len(c.saveLayers))
	for _, s := range c.saveLayers {
		schedulers = append(schedulers, s)
	}
	c.mu.Unlock()

	for _, s := range schedulers {
		s.Flush()
	}
	c.saveProjects.Flush()
	c.saveKeys.Flush()
}

func (c *Connector) layersDir() string {
	return filepath.Join(c.dir, "layers")
}

func (c *Connector) layerPath(layerID string) string {
	return filepath.Join(c.layersDir(), url.PathEscape(layerID)+".json")
}

func (c *Connector) onChange(ch memory.Change) {
	switch ch.Kind {
	case memory.ChangeLayer:
		c.layerScheduler(ch.ID).Schedule()
	case memory.ChangeProject:
		c.saveProjects.Schedule()
	case memory.ChangeKey:
		c.saveKeys.Schedule()
	}
}

func (c *Connector) layerScheduler(layerID string) *debounce.Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.saveLayers[layerID]
	if !ok {
		s = debounce.New(c.delay, func() { c.writeLayer(layerID) })
		c.saveLayers[layerID] = s
	}
	return s
}

func (c *Connector) writeLayer(layerID string) {
	path := c.layerPath(layerID)
	l, ok := c.Snapshot(layerID)
	if !ok {
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		c.record("layer", err)
		if err != nil {
			logging.Error().Err(err).Str("layer", layerID).Msg("Removing layer file failed")
		}
		return
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err == nil {
		err = directory.WriteAtomic(path, data)
	}
	c.record("layer", err)
	if err != nil {
		logging.Error().Err(err).Str("layer", layerID).Msg("Writing layer file failed")
		return
	}
	logging.Debug().Str("layer", layerID).Int("features", len(l.Features)).Msg("Layer file written")
}

func (c *Connector) writeProjects() {
	err := c.projectsFile.Save(c.Projects())
	c.record("projects", err)
	if err != nil {
		logging.Error().Err(err).Msg("Writing project file failed")
	}
}

func (c *Connector) writeKeys() {
	err := c.keysFile.Save(c.Keys())
	c.record("keys", err)
	if err != nil {
		logging.Error().Err(err).Msg("Writing key file failed")
	}
}

func (c *Connector) record(kind string, err error) {
	metrics.RecordDirectoryWrite("file_"+kind, err)
}
