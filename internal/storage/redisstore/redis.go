// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package redisstore implements a key store connector on Redis.

Only the key operations are served; layer and project operations report
ResultError. Each key lives under its own Redis string holding the key entry
and last value as JSON, and the ids are kept in a set:

	<prefix>key:<id>    {"key": {...}, "value": {...}}
	<prefix>keys        set of key ids

Every write is published on <prefix>events:<id>, so SubscribeKey sees writes
from all instances sharing the Redis server. Patterns use Redis glob syntax.
*/
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/storage"
)

// DefaultPrefix namespaces every Redis key the connector writes.
const DefaultPrefix = "layersync:"

// Config controls the Redis connection.
type Config struct {
	// URL is a redis:// URL. It takes precedence over Addr.
	URL      string
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Options converts the config into go-redis options.
func (c Config) Options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}
	if c.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	return &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}, nil
}

type keyRecord struct {
	Key   *models.Key     `json:"key"`
	Value models.KeyValue `json:"value,omitempty"`
}

// keyEvent is published on every write.
type keyEvent struct {
	Origin  string          `json:"origin"`
	Key     *models.Key     `json:"key"`
	Value   models.KeyValue `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// Connector is the Redis key store connector.
type Connector struct {
	connector.Base

	client *redis.Client
	prefix string
	origin string
}

var (
	_ connector.Connector    = (*Connector)(nil)
	_ connector.KeyPublisher = (*Connector)(nil)
)

// New returns a connector using client. An empty prefix means DefaultPrefix.
func New(client *redis.Client, prefix string) *Connector {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Connector{
		Base:   connector.NewBase(connector.RoleStorage, false),
		client: client,
		prefix: prefix,
		origin: uuid.NewString(),
	}
}

// Open connects to Redis and checks the connection.
func Open(ctx context.Context, cfg Config) (*Connector, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logging.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Redis key store connected")
	return New(client, cfg.Prefix), nil
}

// Close closes the Redis client.
func (c *Connector) Close() error {
	return c.client.Close()
}

// Ping checks the connection.
func (c *Connector) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PublishesKeys implements connector.KeyPublisher.
func (c *Connector) PublishesKeys() bool { return true }

func (c *Connector) keyKey(id string) string       { return c.prefix + "key:" + id }
func (c *Connector) setKey() string                { return c.prefix + "keys" }
func (c *Connector) eventChannel(id string) string { return c.prefix + "events:" + id }

// load returns the stored record, or nil when the key does not exist.
func (c *Connector) load(ctx context.Context, keyID string) (*keyRecord, error) {
	data, err := c.client.Get(ctx, c.keyKey(keyID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", keyID, err)
	}
	var rec keyRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key %s: %w", keyID, err)
	}
	return &rec, nil
}

// GetKey returns a key and its last value.
func (c *Connector) GetKey(ctx context.Context, keyID string, _ models.Meta, cb models.Callback) {
	rec, err := c.load(ctx, keyID)
	if err == nil && rec == nil {
		err = storage.KeyNotFound(keyID)
	}
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: map[string]*models.Key{keyID: rec.Key}, Value: rec.Value})
}

// GetKeys returns every stored key.
func (c *Connector) GetKeys(ctx context.Context, _ models.Meta, cb models.Callback) {
	ids, err := c.client.SMembers(ctx, c.setKey()).Result()
	if err != nil {
		storage.Reply(cb, fmt.Errorf("failed to list keys: %w", err))
		return
	}
	keys := make(map[string]*models.Key, len(ids))
	if len(ids) > 0 {
		redisKeys := make([]string, len(ids))
		for i, id := range ids {
			redisKeys[i] = c.keyKey(id)
		}
		values, err := c.client.MGet(ctx, redisKeys...).Result()
		if err != nil {
			storage.Reply(cb, fmt.Errorf("failed to load keys: %w", err))
			return
		}
		for i, v := range values {
			data, ok := v.(string)
			if !ok {
				continue
			}
			var rec keyRecord
			if err := json.Unmarshal([]byte(data), &rec); err != nil || rec.Key == nil {
				logging.Warn().Str("key", ids[i]).Msg("Skipping undecodable Redis key")
				continue
			}
			keys[rec.Key.ID] = rec.Key
		}
	}
	cb(&models.CallbackResult{Result: models.ResultOK, Keys: keys})
}

// UpdateKey stores a key value, creating the key when needed, and publishes
// the write.
func (c *Connector) UpdateKey(ctx context.Context, keyID string, value models.KeyValue, _ models.Meta, cb models.Callback) {
	rec, err := c.load(ctx, keyID)
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	if rec == nil {
		rec = &keyRecord{Key: &models.Key{ID: keyID, Title: keyID, Storage: c.ID()}}
	}
	rec.Value = value

	data, err := json.Marshal(rec)
	if err != nil {
		storage.Reply(cb, fmt.Errorf("failed to marshal key %s: %w", keyID, err))
		return
	}
	event, err := json.Marshal(keyEvent{Origin: c.origin, Key: rec.Key, Value: value})
	if err != nil {
		storage.Reply(cb, fmt.Errorf("failed to marshal key event: %w", err))
		return
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.keyKey(keyID), data, 0)
	pipe.SAdd(ctx, c.setKey(), keyID)
	pipe.Publish(ctx, c.eventChannel(keyID), event)
	if _, err := pipe.Exec(ctx); err != nil {
		storage.Reply(cb, fmt.Errorf("failed to update key %s: %w", keyID, err))
		return
	}
	cb(models.OK())
}

// DeleteKey removes a key.
func (c *Connector) DeleteKey(ctx context.Context, keyID string, _ models.Meta, cb models.Callback) {
	rec, err := c.load(ctx, keyID)
	if err == nil && rec == nil {
		err = storage.KeyNotFound(keyID)
	}
	if err != nil {
		storage.Reply(cb, err)
		return
	}
	event, _ := json.Marshal(keyEvent{Origin: c.origin, Key: rec.Key, Deleted: true})

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.keyKey(keyID))
	pipe.SRem(ctx, c.setKey(), keyID)
	pipe.Publish(ctx, c.eventChannel(keyID), event)
	if _, err := pipe.Exec(ctx); err != nil {
		storage.Reply(cb, fmt.Errorf("failed to delete key %s: %w", keyID, err))
		return
	}
	cb(models.OK())
}

// SubscribeKey calls cb with every value written to a key matching pattern
// until ctx ends. Deletions are not delivered.
func (c *Connector) SubscribeKey(ctx context.Context, pattern string, _ models.Meta, cb models.Callback) {
	if cb == nil {
		return
	}
	sub := c.client.PSubscribe(ctx, c.eventChannel(pattern))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		cb(models.Failuref(models.ResultError, "subscribe %q: %v", pattern, err))
		return
	}

	go func() {
		defer func() {
			if err := sub.Close(); err != nil {
				logging.Debug().Err(err).Msg("Closing Redis subscription failed")
			}
		}()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev keyEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logging.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed key event")
					continue
				}
				if ev.Deleted || ev.Key == nil {
					continue
				}
				cb(&models.CallbackResult{
					Result: models.ResultOK,
					Keys:   map[string]*models.Key{ev.Key.ID: ev.Key},
					Value:  ev.Value,
				})
			}
		}
	}()
}
