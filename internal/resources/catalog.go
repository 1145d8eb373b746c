// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package resources loads the feature and property type catalogs from the
// resource directory and serves them by id.
//
// Each file in the directory becomes one resource keyed by its lowercased
// name without extension. Loading runs in the background; requests that need
// the catalog call Wait. A file that fails to read or parse is logged and
// skipped without affecting the others.
package resources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
	"github.com/tomtom215/layersync/internal/models"
)

// ErrNotLoaded is returned by Wait when Load was never called.
var ErrNotLoaded = errors.New("resource catalog not loaded")

// Catalog is the in-memory resource store.
type Catalog struct {
	dir   string
	items *xsync.MapOf[string, *models.ResourceFile]

	once sync.Once
	done chan struct{}
	// started is closed when Load begins, so Wait can tell "loading" from "never loaded".
	started chan struct{}
}

// NewCatalog creates an empty catalog for dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{
		dir:     dir,
		items:   xsync.NewMapOf[string, *models.ResourceFile](),
		done:    make(chan struct{}),
		started: make(chan struct{}),
	}
}

// ResourceID returns the catalog key for a file name.
func ResourceID(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}

// Load creates the directory if needed, enumerates its .json files and reads
// them in the background. Only directory level failures are returned.
func (c *Catalog) Load() error {
	var err error
	c.once.Do(func() {
		close(c.started)
		err = c.load()
	})
	return err
}

func (c *Catalog) load() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		close(c.done)
		return fmt.Errorf("create resource directory %s: %w", c.dir, err)
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		close(c.done)
		return fmt.Errorf("read resource directory %s: %w", c.dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			files = append(files, e.Name())
		}
	}

	go func() {
		defer close(c.done)
		var wg sync.WaitGroup
		for _, name := range files {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				c.loadFile(name)
			}(name)
		}
		wg.Wait()
		metrics.ResourcesLoaded.Set(float64(c.items.Size()))
		logging.Info().Int("resources", c.items.Size()).Str("dir", c.dir).Msg("Resource catalog loaded")
	}()
	return nil
}

func (c *Catalog) loadFile(name string) {
	path := filepath.Join(c.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn().Err(err).Str("file", path).Msg("Skipping unreadable resource file")
		return
	}
	var rf models.ResourceFile
	if err := json.Unmarshal(data, &rf); err != nil {
		logging.Warn().Err(err).Str("file", path).Msg("Skipping malformed resource file")
		return
	}
	id := ResourceID(name)
	rf.ID = id
	rf.Normalize()
	c.items.Store(id, &rf)
}

// Wait blocks until the background load finishes or ctx ends.
func (c *Catalog) Wait(ctx context.Context) error {
	select {
	case <-c.started:
	default:
		return ErrNotLoaded
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the resource with the given id (case-insensitive).
func (c *Catalog) Get(id string) (*models.ResourceFile, bool) {
	return c.items.Load(strings.ToLower(id))
}

// Update replaces a resource in memory and writes it back to its file.
func (c *Catalog) Update(id string, rf *models.ResourceFile) error {
	id = strings.ToLower(id)
	rf.ID = id
	rf.Normalize()

	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal resource %s: %w", id, err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create resource directory %s: %w", c.dir, err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, id+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write resource %s: %w", id, err)
	}
	c.items.Store(id, rf)
	metrics.ResourcesLoaded.Set(float64(c.items.Size()))
	return nil
}

// IDs returns every resource id, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, c.items.Size())
	c.items.Range(func(id string, _ *models.ResourceFile) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

// Len returns the number of loaded resources.
func (c *Catalog) Len() int {
	return c.items.Size()
}
