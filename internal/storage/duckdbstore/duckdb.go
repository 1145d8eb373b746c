// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package duckdbstore implements a storage connector on DuckDB.

Schema:

	layers(id, doc)                         layer metadata as JSON
	features(layer_id, id, doc, lng, lat)   one row per feature, anchor point indexed
	projects(id, doc)
	key_values(id, doc)                     key and last value as JSON

Bounding box queries run entirely in SQL on the anchor columns. Distance and
polygon queries use SQL to narrow the rows to the enclosing box and refine the
candidates in Go.
*/
package duckdbstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/geo"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
)

// Config controls the DuckDB database.
type Config struct {
	// Path is the database file. Empty opens an in-memory database.
	Path string
	// Threads limits DuckDB worker threads. Zero keeps DuckDB's default.
	Threads int
	// MaxMemory caps DuckDB memory, e.g. "512MB". Empty keeps the default.
	MaxMemory string
}

func (c Config) dsn() string {
	path := c.Path
	if path == "" {
		path = ":memory:"
	}
	dsn := path + "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"
	if c.Threads > 0 {
		dsn += fmt.Sprintf("&threads=%d", c.Threads)
	}
	if c.MaxMemory != "" {
		dsn += "&max_memory=" + c.MaxMemory
	}
	return dsn
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS layers (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS features (
		layer_id TEXT NOT NULL,
		id TEXT NOT NULL,
		doc TEXT NOT NULL,
		lng DOUBLE,
		lat DOUBLE,
		PRIMARY KEY (layer_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_features_anchor ON features(layer_id, lng, lat)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS key_values (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL
	)`,
}

// Connector is the DuckDB storage connector.
type Connector struct {
	connector.Base

	conn *sql.DB
	now  func() time.Time
}

// Open opens the database and creates the schema.
func Open(ctx context.Context, cfg Config) (*Connector, error) {
	conn, err := sql.Open("duckdb", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	for _, q := range schema {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			closeQuietly(conn)
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	logging.Info().Str("path", path).Msg("DuckDB storage opened")

	return &Connector{
		Base: connector.NewBase(connector.RoleStorage, false),
		conn: conn,
		now:  time.Now,
	}, nil
}

// Close closes the database.
func (c *Connector) Close() error {
	return c.conn.Close()
}

// Ping checks the connection.
func (c *Connector) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Closing DuckDB connection failed")
	}
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction and commits when it returns nil.
func (c *Connector) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Warn().Err(rbErr).Msg("DuckDB rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// getDoc decodes the doc column of the row with id in table. It returns
// sql.ErrNoRows when the row is absent.
func getDoc(ctx context.Context, q queryer, table, id string, v any) error {
	var doc string
	err := q.QueryRowContext(ctx, "SELECT doc FROM "+table+" WHERE id = ?", id).Scan(&doc)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(doc), v)
}

func putDoc(ctx context.Context, q queryer, table, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", table, id, err)
	}
	_, err = q.ExecContext(ctx, "INSERT OR REPLACE INTO "+table+" (id, doc) VALUES (?, ?)", id, string(data))
	if err != nil {
		return fmt.Errorf("write %s %s: %w", table, id, err)
	}
	return nil
}

func rowExists(ctx context.Context, q queryer, table, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT count(*) FROM "+table+" WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("check %s %s: %w", table, id, err)
	}
	return n > 0, nil
}

func putFeature(ctx context.Context, q queryer, layerID string, f *models.Feature) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal feature %s: %w", f.ID, err)
	}
	var lng, lat sql.NullFloat64
	if f.Geometry != nil {
		if p, err := geo.Anchor(f.Geometry); err == nil {
			lng = sql.NullFloat64{Float64: p.Lng, Valid: true}
			lat = sql.NullFloat64{Float64: p.Lat, Valid: true}
		}
	}
	_, err = q.ExecContext(ctx,
		"INSERT OR REPLACE INTO features (layer_id, id, doc, lng, lat) VALUES (?, ?, ?, ?, ?)",
		layerID, f.ID, string(data), lng, lat)
	if err != nil {
		return fmt.Errorf("write feature %s: %w", f.ID, err)
	}
	return nil
}

func scanFeatures(rows *sql.Rows) ([]*models.Feature, error) {
	defer rows.Close()
	out := make([]*models.Feature, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		var f models.Feature
		if err := json.Unmarshal([]byte(doc), &f); err != nil {
			logging.Warn().Err(err).Msg("Skipping undecodable feature row")
			continue
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	return out, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
