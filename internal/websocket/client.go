// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB

	// allLayers subscribes a client to every layer.
	allLayers = "*"
)

// clientSeq orders clients for deterministic delivery.
var clientSeq atomic.Uint64

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	seq     uint64
	id      string
	user    string
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	limiter *rate.Limiter

	mu     sync.RWMutex
	layers map[string]struct{}

	sendMu sync.RWMutex
	closed bool
}

// NewClient creates a client for conn. user is the authenticated user, if any.
func NewClient(hub *Hub, conn *websocket.Conn, user string) *Client {
	return &Client{
		seq:     clientSeq.Add(1),
		id:      uuid.NewString(),
		user:    user,
		hub:     hub,
		conn:    conn,
		send:    make(chan Message, 256),
		limiter: hub.newLimiter(),
		layers:  make(map[string]struct{}),
	}
}

// ID returns the client id used as Meta.User for changes it makes.
func (c *Client) ID() string {
	return c.id
}

// subscribe adds a layer to the client's subscriptions.
func (c *Client) subscribe(layerID string) {
	c.mu.Lock()
	c.layers[layerID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) unsubscribe(layerID string) {
	c.mu.Lock()
	delete(c.layers, layerID)
	c.mu.Unlock()
}

// wants reports whether a message for layerID should reach the client.
func (c *Client) wants(layerID string) bool {
	if layerID == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.layers[allLayers]; ok {
		return true
	}
	_, ok := c.layers[layerID]
	return ok
}

// trySend queues msg without blocking. It reports false when the buffer is
// full or the client is closed.
func (c *Client) trySend(msg Message) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel once, which ends the write pump.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("client", c.id).Msg("unexpected websocket close error")
				metrics.WSErrors.WithLabelValues("read").Inc()
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if c.limiter != nil && !c.limiter.Allow() {
			metrics.WSErrors.WithLabelValues("rate_limited").Inc()
			c.trySend(errorMessage(msg.Type, "rate limit exceeded"))
			continue
		}
		c.hub.handle(c, msg)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Str("client", c.id).Msg("failed to write JSON message")
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
