// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package websocket provides the real-time interface connector.

Browser clients connect over a WebSocket, subscribe to the layers they display
and exchange LayerUpdate envelopes with the server. Changes made by a client
are dispatched into the manager; changes made anywhere are pushed to every
client subscribed to the layer except the one that made them.

Key Components:

  - Hub: owns the client set and delivers messages in client order
  - Client: one connection with its read and write goroutines
  - Connector: the interface connector registered with the manager

Architecture:

	┌───────────┐   dispatch    ┌───────────┐
	│  Manager  │ ◄──────────── │ Connector │
	│           │ ────────────► │           │
	└───────────┘   fan-out     └─────┬─────┘
	                                  │
	                            ┌─────┴─────┐
	                            │    Hub    │
	                            └─────┬─────┘
	                  ┌───────────────┼───────────────┐
	               Client1         Client2         Client3

Messages:

Every frame is {"type": ..., "data": ...}.

Client to server:

  - ping: answered with pong
  - subscribe / unsubscribe: {"layerId": "roads"}, "*" for all layers
  - layer: a LayerUpdate envelope (updateFeature, deleteFeature, updateLog)

Server to client:

  - layer: a LayerUpdate envelope for a subscribed layer
  - property: a single property change {"layerId", "featureId", "property", "value"}
  - layers / projects: directory changes {"action", ...}
  - key: a key write or deletion
  - error: a rejected client message

Each client message is rate limited with golang.org/x/time/rate; frames over
the limit are answered with an error message and dropped.

Connection settings:

  - writeWait: 10 seconds
  - pongWait: 60 seconds
  - pingPeriod: 54 seconds
  - maxMessageSize: 512 KB
*/
package websocket
