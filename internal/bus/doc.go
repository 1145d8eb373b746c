// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package bus provides the message bus interface connector.

Several layersync instances share one NATS subject so a change made on any
of them reaches the others. The connector publishes every mutation the
manager fans out to it and applies the mutations published by other
instances through the manager.

Wire Format:

Each mutation is one Event on the subject <prefix>.events, encoded with the
configured codec (JSON by default, MessagePack optionally). Events carry the
publishing instance's origin id; an instance drops its own events on receipt.
Because all events share one subject, NATS keeps their order per publisher.

Resilience:

Publishing goes through a gobreaker circuit breaker. While the breaker is
open, publishes fail fast and the manager records the delivery failure; the
local change is unaffected.

Components:

  - Connector: the interface connector (publish + apply)
  - Codec: JSON or MessagePack event encoding
  - EmbeddedServer: an in-process NATS server for single host setups
  - NewNATSPubSub: watermill-nats publisher and subscriber on core NATS

Tests run the connector on watermill's in-memory gochannel pub/sub.
*/
package bus
