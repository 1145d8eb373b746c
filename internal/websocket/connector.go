// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
)

// Config controls the WebSocket connector.
type Config struct {
	// ReceiveCopy delivers changes made through this connector back to it,
	// so other clients see them. The originating client is always skipped.
	ReceiveCopy bool
	// AllowedOrigins lists accepted Origin headers. "*" accepts any origin.
	AllowedOrigins []string
	Hub            HubConfig
}

// DirectoryEvent is the payload of layers and projects messages.
type DirectoryEvent struct {
	Action  string                  `json:"action"` // add, update, delete
	ID      string                  `json:"id"`
	Layer   *models.LayerDefinition `json:"layer,omitempty"`
	Project *models.Project         `json:"project,omitempty"`
}

// KeyEvent is the payload of key messages.
type KeyEvent struct {
	KeyID   string          `json:"keyId"`
	Value   models.KeyValue `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// PropertyEvent is the payload of property messages.
type PropertyEvent struct {
	LayerID   string `json:"layerId"`
	FeatureID string `json:"featureId"`
	Property  string `json:"property"`
	Value     any    `json:"value"`
}

// Connector is the WebSocket interface connector.
type Connector struct {
	connector.Base

	hub        *Hub
	dispatcher connector.Dispatcher
	origins    []string
}

var _ connector.Connector = (*Connector)(nil)

// New creates the connector and its hub. The hub must be run with Serve.
func New(cfg Config) *Connector {
	c := &Connector{
		Base:    connector.NewBase(connector.RoleInterface, cfg.ReceiveCopy),
		hub:     NewHub(cfg.Hub),
		origins: cfg.AllowedOrigins,
	}
	c.hub.onLayer = c.handleLayer
	return c
}

// Hub returns the connector's hub.
func (c *Connector) Hub() *Hub {
	return c.hub
}

// Init keeps the dispatcher for client changes. The receiveCopy option
// overrides the configured value.
func (c *Connector) Init(d connector.Dispatcher, opts connector.Options) error {
	c.dispatcher = d
	c.Copy = opts.Bool("receiveCopy", c.Copy)
	c.hub.known = func(layerID string) bool { return d.FindLayer(layerID) != nil }
	return nil
}

// Serve runs the hub until ctx is canceled.
func (c *Connector) Serve(ctx context.Context) error {
	return c.hub.RunWithContext(ctx)
}

func (c *Connector) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      c.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

func (c *Connector) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients do not send an Origin header.
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range c.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// ServeClient upgrades the request and attaches the connection to the hub.
// user is the authenticated user, empty when authentication is off.
func (c *Connector) ServeClient(w http.ResponseWriter, r *http.Request, user string) {
	up := c.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}
	client := NewClient(c.hub, conn, user)
	c.hub.Register <- client
	client.Start()
}

// ServeHTTP implements http.Handler for unauthenticated use.
func (c *Connector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.ServeClient(w, r, "")
}

// handleLayer dispatches a LayerUpdate received from a client.
func (c *Connector) handleLayer(client *Client, data json.RawMessage) {
	var u models.LayerUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		client.trySend(errorMessage(MessageTypeLayer, "malformed layer update"))
		return
	}
	if err := u.Validate(); err != nil {
		client.trySend(errorMessage(MessageTypeLayer, err.Error()))
		return
	}
	if c.dispatcher == nil || c.dispatcher.FindLayer(u.LayerID) == nil {
		client.trySend(errorMessage(MessageTypeLayer, "unknown layer "+u.LayerID))
		return
	}

	ctx := c.hub.context()
	meta := models.Meta{Source: c.ID(), User: client.ID()}
	done := func(res *models.CallbackResult) {
		if !res.IsOK() {
			logging.Debug().
				Str("client", client.ID()).
				Str("layer", u.LayerID).
				Str("action", string(u.Action)).
				Str("error", res.Error).
				Msg("Client change rejected")
		}
	}

	switch u.Action {
	case models.ActionUpdateFeature:
		f, err := u.DecodeFeature()
		if err != nil {
			client.trySend(errorMessage(MessageTypeLayer, err.Error()))
			return
		}
		c.dispatcher.UpdateFeature(ctx, u.LayerID, f, meta, done)
	case models.ActionDeleteFeature:
		id, err := u.DecodeFeatureID()
		if err != nil {
			client.trySend(errorMessage(MessageTypeLayer, err.Error()))
			return
		}
		c.dispatcher.DeleteFeature(ctx, u.LayerID, id, meta, done)
	case models.ActionUpdateLog:
		lu, err := u.DecodeLogs()
		if err != nil {
			client.trySend(errorMessage(MessageTypeLayer, err.Error()))
			return
		}
		c.dispatcher.UpdateLogs(ctx, u.LayerID, lu.FeatureID, lu.Logs, meta, done)
	}
}

// exclude returns the client to skip for a change described by meta.
func (c *Connector) exclude(meta models.Meta) string {
	if meta.Source == c.ID() {
		return meta.User
	}
	return ""
}

func (c *Connector) publishUpdate(u *models.LayerUpdate, err error, meta models.Meta, cb models.Callback) {
	if err != nil {
		cb(models.Failure(models.ResultError, err.Error()))
		return
	}
	c.hub.Publish(Message{Type: MessageTypeLayer, Data: u}, u.LayerID, c.exclude(meta))
	cb(models.OK())
}

func (c *Connector) publishDirectory(msgType string, ev DirectoryEvent, meta models.Meta, cb models.Callback) {
	c.hub.Publish(Message{Type: msgType, Data: ev}, "", c.exclude(meta))
	cb(models.OK())
}

// AddLayer announces a new layer.
func (c *Connector) AddLayer(_ context.Context, l *models.Layer, meta models.Meta, cb models.Callback) {
	c.publishDirectory(MessageTypeLayers, DirectoryEvent{Action: "add", ID: l.ID, Layer: l.Definition()}, meta, cb)
}

// UpdateLayer announces a changed layer definition.
func (c *Connector) UpdateLayer(_ context.Context, l *models.Layer, meta models.Meta, cb models.Callback) {
	c.publishDirectory(MessageTypeLayers, DirectoryEvent{Action: "update", ID: l.ID, Layer: l.Definition()}, meta, cb)
}

// DeleteLayer announces a removed layer.
func (c *Connector) DeleteLayer(_ context.Context, layerID string, meta models.Meta, cb models.Callback) {
	c.publishDirectory(MessageTypeLayers, DirectoryEvent{Action: "delete", ID: layerID}, meta, cb)
}

// AddFeature pushes a new feature to the layer's subscribers.
func (c *Connector) AddFeature(_ context.Context, layerID string, f *models.Feature, meta models.Meta, cb models.Callback) {
	u, err := models.NewFeatureUpdate(layerID, f)
	c.publishUpdate(u, err, meta, cb)
}

// UpdateFeature pushes a changed feature to the layer's subscribers.
func (c *Connector) UpdateFeature(_ context.Context, layerID string, f *models.Feature, _ bool, meta models.Meta, cb models.Callback) {
	u, err := models.NewFeatureUpdate(layerID, f)
	c.publishUpdate(u, err, meta, cb)
}

// DeleteFeature pushes a feature removal to the layer's subscribers.
func (c *Connector) DeleteFeature(_ context.Context, layerID, featureID string, meta models.Meta, cb models.Callback) {
	u, err := models.NewDeleteUpdate(layerID, featureID)
	c.publishUpdate(u, err, meta, cb)
}

func logUpdate(layerID, featureID string, logs map[string][]models.Log) (*models.LayerUpdate, error) {
	obj, err := json.Marshal(logs)
	if err != nil {
		return nil, err
	}
	return &models.LayerUpdate{LayerID: layerID, Action: models.ActionUpdateLog, FeatureID: featureID, Object: obj}, nil
}

// UpdateLogs pushes merged log entries to the layer's subscribers. The
// object is the property to entries map.
func (c *Connector) UpdateLogs(_ context.Context, layerID, featureID string, logs map[string][]models.Log, meta models.Meta, cb models.Callback) {
	u, err := logUpdate(layerID, featureID, logs)
	c.publishUpdate(u, err, meta, cb)
}

// AddLog pushes one log entry to the layer's subscribers.
func (c *Connector) AddLog(_ context.Context, layerID, featureID, property string, log models.Log, meta models.Meta, cb models.Callback) {
	u, err := logUpdate(layerID, featureID, map[string][]models.Log{property: {log}})
	c.publishUpdate(u, err, meta, cb)
}

// UpdateProperty pushes a property change to the layer's subscribers.
func (c *Connector) UpdateProperty(_ context.Context, layerID, featureID, property string, value any, _ bool, meta models.Meta, cb models.Callback) {
	ev := PropertyEvent{LayerID: layerID, FeatureID: featureID, Property: property, Value: value}
	c.hub.Publish(Message{Type: MessageTypeProperty, Data: ev}, layerID, c.exclude(meta))
	cb(models.OK())
}

// AddProject announces a new project.
func (c *Connector) AddProject(_ context.Context, p *models.Project, meta models.Meta, cb models.Callback) {
	c.publishDirectory(MessageTypeProjects, DirectoryEvent{Action: "add", ID: p.ID, Project: p.Definition()}, meta, cb)
}

// DeleteProject announces a removed project.
func (c *Connector) DeleteProject(_ context.Context, projectID string, meta models.Meta, cb models.Callback) {
	c.publishDirectory(MessageTypeProjects, DirectoryEvent{Action: "delete", ID: projectID}, meta, cb)
}

// UpdateKey pushes a key write to every client.
func (c *Connector) UpdateKey(_ context.Context, keyID string, value models.KeyValue, meta models.Meta, cb models.Callback) {
	c.hub.Publish(Message{Type: MessageTypeKey, Data: KeyEvent{KeyID: keyID, Value: value}}, "", c.exclude(meta))
	cb(models.OK())
}

// DeleteKey pushes a key removal to every client.
func (c *Connector) DeleteKey(_ context.Context, keyID string, meta models.Meta, cb models.Callback) {
	c.hub.Publish(Message{Type: MessageTypeKey, Data: KeyEvent{KeyID: keyID, Deleted: true}}, "", c.exclude(meta))
	cb(models.OK())
}
