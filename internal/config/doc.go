// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package config loads the server configuration with Koanf v2.

Sources are layered, later ones overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml or
    /etc/layersync/config.yaml
 3. Environment variables, mapped explicitly in envTransformFunc so unrelated
    variables never leak into the configuration

Sections:

	server     HTTP listen address and request timeout
	data       data directory, directory file names, save delay, default storage
	storage    optional file, badger, duckdb and redis storage connectors
	websocket  WebSocket interface connector
	nats       NATS bus connector, embedded server and codec
	security   authentication, CORS and rate limiting
	logging    zerolog level and format

Example config.yaml:

	server:
	  port: 3002
	data:
	  dir: /var/lib/layersync
	  default_storage: badger
	storage:
	  badger:
	    enabled: true
	    path: /var/lib/layersync/badger
	nats:
	  enabled: true
	  embedded_server: true

Load validates the result; a Config is read-only afterwards.
*/
package config
