// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T, cfg HubConfig) *Hub {
	t.Helper()
	hub := NewHub(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	})
	return hub
}

// testClient builds a client without a connection.
func testClient(hub *Hub, id string, layers ...string) *Client {
	c := &Client{
		seq:    clientSeq.Add(1),
		id:     id,
		hub:    hub,
		send:   make(chan Message, 16),
		layers: make(map[string]struct{}),
	}
	for _, l := range layers {
		c.subscribe(l)
	}
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.id)
		return Message{}
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Errorf("client %s received unexpected %+v", c.id, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(HubConfig{})

	checks := []struct {
		name  string
		check bool
	}{
		{"clients map", hub.clients != nil},
		{"broadcast channel", hub.broadcast != nil},
		{"Register channel", hub.Register != nil},
		{"Unregister channel", hub.Unregister != nil},
		{"no limiter without rate", hub.newLimiter() == nil},
		{"default context", hub.context() != nil},
	}
	for _, c := range checks {
		if !c.check {
			t.Errorf("%s: check failed", c.name)
		}
	}
}

func TestHubLimiter(t *testing.T) {
	hub := NewHub(HubConfig{RatePerSecond: 0.001, Burst: 2})
	l := hub.newLimiter()
	if l == nil {
		t.Fatal("newLimiter() = nil")
	}
	if !l.Allow() || !l.Allow() {
		t.Fatal("burst frames rejected")
	}
	if l.Allow() {
		t.Error("frame over the burst allowed")
	}
}

func TestHubDeliversBySubscription(t *testing.T) {
	hub := startHub(t, HubConfig{})
	roads := testClient(hub, "a", "roads")
	rivers := testClient(hub, "b", "rivers")
	all := testClient(hub, "c", allLayers)
	for _, c := range []*Client{roads, rivers, all} {
		hub.Register <- c
	}

	hub.Publish(Message{Type: MessageTypeLayer, Data: "r1"}, "roads", "")
	if got := receive(t, roads); got.Data != "r1" {
		t.Errorf("roads client got %+v", got)
	}
	if got := receive(t, all); got.Data != "r1" {
		t.Errorf("wildcard client got %+v", got)
	}
	expectNothing(t, rivers)

	hub.BroadcastJSON(MessageTypeLayers, "dir")
	for _, c := range []*Client{roads, rivers, all} {
		if got := receive(t, c); got.Type != MessageTypeLayers {
			t.Errorf("client %s got %+v", c.id, got)
		}
	}
	if n := hub.GetClientCount(); n != 3 {
		t.Errorf("GetClientCount() = %d, want 3", n)
	}
}

func TestHubExcludesOrigin(t *testing.T) {
	hub := startHub(t, HubConfig{})
	a := testClient(hub, "a", "roads")
	b := testClient(hub, "b", "roads")
	hub.Register <- a
	hub.Register <- b

	hub.Publish(Message{Type: MessageTypeLayer, Data: "x"}, "roads", "a")
	if got := receive(t, b); got.Data != "x" {
		t.Errorf("b got %+v", got)
	}
	expectNothing(t, a)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t, HubConfig{})
	slow := testClient(hub, "slow")
	slow.send = make(chan Message, 1)
	hub.Register <- slow

	hub.BroadcastJSON(MessageTypeKey, 1)
	hub.BroadcastJSON(MessageTypeKey, 2)

	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := hub.GetClientCount(); n != 0 {
		t.Fatalf("slow client still registered, count = %d", n)
	}
	if slow.trySend(Message{}) {
		t.Error("trySend on closed client succeeded")
	}
}

func TestHubUnregister(t *testing.T) {
	hub := startHub(t, HubConfig{})
	c := testClient(hub, "a")
	hub.Register <- c
	hub.Unregister <- c
	hub.Unregister <- c // second unregister is harmless

	if n := hub.GetClientCount(); n != 0 {
		t.Errorf("GetClientCount() = %d, want 0", n)
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel still open")
	}
}

func TestHubHandle(t *testing.T) {
	hub := NewHub(HubConfig{})
	hub.known = func(id string) bool { return id == "roads" }

	raw := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}

	tests := []struct {
		name     string
		msg      inbound
		wantType string
		wantSub  bool
	}{
		{"ping", inbound{Type: MessageTypePing}, MessageTypePong, false},
		{"subscribe known", inbound{Type: MessageTypeSubscribe, Data: raw(subscribeData{LayerID: "roads"})}, "", true},
		{"subscribe unknown", inbound{Type: MessageTypeSubscribe, Data: raw(subscribeData{LayerID: "lakes"})}, MessageTypeError, false},
		{"subscribe without id", inbound{Type: MessageTypeSubscribe, Data: raw(map[string]string{})}, MessageTypeError, false},
		{"layer without handler", inbound{Type: MessageTypeLayer, Data: raw(map[string]string{})}, MessageTypeError, false},
		{"unknown type", inbound{Type: "shout"}, MessageTypeError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(hub, "a")
			hub.handle(c, tt.msg)
			if tt.wantType != "" {
				if got := receive(t, c); got.Type != tt.wantType {
					t.Errorf("reply type = %q, want %q", got.Type, tt.wantType)
				}
			} else {
				expectNothing(t, c)
			}
			if got := c.wants("roads"); got != tt.wantSub {
				t.Errorf("wants(roads) = %v, want %v", got, tt.wantSub)
			}
		})
	}

	c := testClient(hub, "a", "roads")
	hub.handle(c, inbound{Type: MessageTypeUnsubscribe, Data: raw(subscribeData{LayerID: "roads"})})
	if c.wants("roads") {
		t.Error("still subscribed after unsubscribe")
	}
}

func TestGetShutdownReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled = %s", got)
	}
	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline = %s", got)
	}
}
