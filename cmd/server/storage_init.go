// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/layersync/internal/config"
	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/storage/badgerstore"
	"github.com/tomtom215/layersync/internal/storage/duckdbstore"
	"github.com/tomtom215/layersync/internal/storage/file"
	"github.com/tomtom215/layersync/internal/storage/memory"
	"github.com/tomtom215/layersync/internal/storage/redisstore"
)

// storageEntry is one opened storage connector.
type storageEntry struct {
	id      string
	conn    connector.Connector
	opts    connector.Options
	closeFn func() error
	ping    func(ctx context.Context) error
}

// storageSet holds the storage connectors opened from configuration, in
// registration order.
type storageSet struct {
	entries []storageEntry
}

// openStorages opens every enabled storage connector. On failure the
// connectors opened so far are closed.
func openStorages(ctx context.Context, cfg *config.Config) (*storageSet, error) {
	set := &storageSet{}
	for _, id := range cfg.EnabledStorages() {
		entry, err := openStorage(ctx, id, cfg)
		if err != nil {
			if closeErr := set.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Error closing storages after failed open")
			}
			return nil, fmt.Errorf("open %s storage: %w", id, err)
		}
		set.entries = append(set.entries, entry)
		logging.Info().Str("storage", id).Msg("Storage connector opened")
	}
	return set, nil
}

func openStorage(ctx context.Context, id string, cfg *config.Config) (storageEntry, error) {
	switch id {
	case config.StorageMemory:
		return storageEntry{id: id, conn: memory.New()}, nil

	case config.StorageFile:
		fc := cfg.Storage.File
		c := file.New(fc.Dir, fc.WriteDelay)
		return storageEntry{
			id:   id,
			conn: c,
			opts: connector.Options{"path": fc.Dir},
			closeFn: func() error {
				c.Close()
				return nil
			},
		}, nil

	case config.StorageBadger:
		bc := cfg.Storage.Badger
		c, err := badgerstore.Open(badgerstore.Config{
			Path:        bc.Path,
			InMemory:    bc.InMemory,
			SyncWrites:  bc.SyncWrites,
			Compression: bc.Compression,
		})
		if err != nil {
			return storageEntry{}, err
		}
		return storageEntry{id: id, conn: c, closeFn: c.Close}, nil

	case config.StorageDuckDB:
		dc := cfg.Storage.DuckDB
		c, err := duckdbstore.Open(ctx, duckdbstore.Config{
			Path:      dc.Path,
			Threads:   dc.Threads,
			MaxMemory: dc.MaxMemory,
		})
		if err != nil {
			return storageEntry{}, err
		}
		return storageEntry{id: id, conn: c, closeFn: c.Close, ping: c.Ping}, nil

	case config.StorageRedis:
		rc := cfg.Storage.Redis
		c, err := redisstore.Open(ctx, redisstore.Config{
			URL:      rc.URL,
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
		})
		if err != nil {
			return storageEntry{}, err
		}
		return storageEntry{id: id, conn: c, closeFn: c.Close, ping: c.Ping}, nil
	}
	return storageEntry{}, fmt.Errorf("unknown storage %q", id)
}

// IDs returns the storage ids in registration order.
func (s *storageSet) IDs() []string {
	ids := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		ids = append(ids, e.id)
	}
	return ids
}

// Close closes every storage that holds external resources, in reverse
// registration order.
func (s *storageSet) Close() error {
	var errs []error
	for i := len(s.entries) - 1; i >= 0; i-- {
		if fn := s.entries[i].closeFn; fn != nil {
			if err := fn(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.entries[i].id, err))
			}
		}
	}
	return errors.Join(errs...)
}
