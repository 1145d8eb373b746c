// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package supervisor runs the long-lived parts of layersync under a suture v4
supervisor tree.

	RootSupervisor ("layersync")
	├── DataSupervisor ("data-layer")
	│   └── ShutdownService ("directory-flusher"): flushes directories, closes storages
	├── MessagingSupervisor ("messaging-layer")
	│   ├── ServeService ("websocket-hub")
	│   └── ServeService ("bus-subscriber", if NATS is enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService ("http-server")

A crashed service is restarted with backoff; a failing bus subscription does
not take the REST API down with it. Supervisor events are logged through
sutureslog into zerolog.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewComponentSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewShutdownService("directory-flusher", mgr.Close))
	tree.AddMessagingService(services.NewServeService("websocket-hub", wsConnector))
	tree.AddAPIService(services.NewHTTPServerService(server, 15*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
