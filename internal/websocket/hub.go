// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeLayer       = "layer"
	MessageTypeProperty    = "property"
	MessageTypeLayers      = "layers"
	MessageTypeProjects    = "projects"
	MessageTypeKey         = "key"
	MessageTypeError       = "error"
)

// Message is an outbound WebSocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// inbound is a frame received from a client.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Request string `json:"request,omitempty"`
	Message string `json:"message"`
}

func errorMessage(request, msg string) Message {
	return Message{Type: MessageTypeError, Data: ErrorData{Request: request, Message: msg}}
}

// delivery is a message on its way to the clients. An empty layerID reaches
// every client; exclude names a client id that must not receive it.
type delivery struct {
	msg     Message
	layerID string
	exclude string
}

// HubConfig limits what clients may send.
type HubConfig struct {
	// RatePerSecond is the sustained number of frames a client may send.
	// Zero disables rate limiting.
	RatePerSecond float64
	// Burst is the number of frames allowed above the sustained rate.
	Burst int
}

// Hub maintains the set of active clients and delivers messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan delivery
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	cfg     HubConfig
	onLayer func(c *Client, data json.RawMessage)
	known   func(layerID string) bool

	ctxMu sync.RWMutex
	ctx   context.Context
}

// NewHub creates a new Hub.
func NewHub(cfg HubConfig) *Hub {
	return &Hub{
		broadcast:  make(chan delivery, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		cfg:        cfg,
		ctx:        context.Background(),
	}
}

func (h *Hub) newLimiter() *rate.Limiter {
	if h.cfg.RatePerSecond <= 0 {
		return nil
	}
	burst := h.cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.cfg.RatePerSecond), burst)
}

// context returns the context of the running hub, used for dispatching
// client changes.
func (h *Hub) context() context.Context {
	h.ctxMu.RLock()
	defer h.ctxMu.RUnlock()
	return h.ctx
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client and returns ctx.Err(). Lifecycle events are handled before
// deliveries so the client set is settled before a message goes out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.ctxMu.Lock()
	h.ctx = ctx
	h.ctxMu.Unlock()

	for {
		// Priority 1: shutdown
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: deliveries, or wait for any event
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Str("client", client.id).Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
	}
	client.closeSend()
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Str("client", client.id).Int("total_clients", n).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns the clients in connection order. Callers hold h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].seq < clients[j].seq
	})
	return clients
}

// deliver sends d to the matching clients in connection order. Clients whose
// buffer is full are dropped.
func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if client.id == d.exclude || !client.wants(d.layerID) {
			continue
		}
		if !client.trySend(d.msg) {
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		logging.Warn().Str("client", client.id).Msg("websocket client too slow, disconnecting")
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
		client.closeSend()
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		client.closeSend()
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// Publish queues msg for the clients subscribed to layerID (every client when
// layerID is empty) except the client with id exclude.
func (h *Hub) Publish(msg Message, layerID, exclude string) {
	select {
	case h.broadcast <- delivery{msg: msg, layerID: layerID, exclude: exclude}:
	default:
		logging.Warn().Str("message_type", msg.Type).Str("layer", layerID).Msg("broadcast channel full, dropping message")
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
	}
}

// BroadcastJSON sends a message to every connected client.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	h.Publish(Message{Type: messageType, Data: data}, "", "")
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type subscribeData struct {
	LayerID string `json:"layerId"`
}

// handle processes one client frame.
func (h *Hub) handle(c *Client, msg inbound) {
	switch msg.Type {
	case MessageTypePing:
		c.trySend(Message{Type: MessageTypePong})

	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		var sd subscribeData
		if err := json.Unmarshal(msg.Data, &sd); err != nil || sd.LayerID == "" {
			c.trySend(errorMessage(msg.Type, "layerId is required"))
			return
		}
		if msg.Type == MessageTypeUnsubscribe {
			c.unsubscribe(sd.LayerID)
			return
		}
		if sd.LayerID != allLayers && h.known != nil && !h.known(sd.LayerID) {
			c.trySend(errorMessage(msg.Type, "unknown layer "+sd.LayerID))
			return
		}
		c.subscribe(sd.LayerID)

	case MessageTypeLayer:
		if h.onLayer == nil {
			c.trySend(errorMessage(msg.Type, "layer updates are not accepted"))
			return
		}
		h.onLayer(c, msg.Data)

	default:
		c.trySend(errorMessage(msg.Type, "unknown message type"))
	}
}
