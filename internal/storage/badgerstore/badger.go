// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package badgerstore implements a storage connector on BadgerDB.
//
// Every record is a JSON value under a prefixed key:
//
//	layer:<layer id>                      layer without features
//	feature:<layer id>\x00<feature id>    one feature
//	project:<project id>                  project
//	key:<key id>                          key with its last value
//
// Each operation runs in a single Badger transaction, so a feature write and
// the layer existence check it depends on are atomic.
package badgerstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
)

const (
	prefixLayer   = "layer:"
	prefixFeature = "feature:"
	prefixProject = "project:"
	prefixKey     = "key:"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("badger storage is closed")

// Config controls the Badger database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps the database in memory only.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Compression enables Snappy block compression.
	Compression bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("badger storage path is required")
	}
	return nil
}

// Connector is the Badger storage connector.
type Connector struct {
	connector.Base

	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) the database.
func Open(cfg Config) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Badger storage opened")

	return &Connector{
		Base: connector.NewBase(connector.RoleStorage, false),
		db:   db,
		now:  time.Now,
	}, nil
}

// Close closes the database.
func (c *Connector) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}

func layerKey(id string) []byte   { return []byte(prefixLayer + id) }
func projectKey(id string) []byte { return []byte(prefixProject + id) }
func keyKey(id string) []byte     { return []byte(prefixKey + id) }

func featurePrefix(layerID string) []byte {
	return []byte(prefixFeature + layerID + "\x00")
}

func featureKey(layerID, featureID string) []byte {
	return append(featurePrefix(layerID), featureID...)
}

// getJSON decodes the value at key. It returns badger.ErrKeyNotFound when the
// key is absent.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scan decodes every value under prefix.
func scan[T any](txn *badger.Txn, prefix []byte) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []T
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v T
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping undecodable badger record")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// deletePrefix removes every key under prefix.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}
