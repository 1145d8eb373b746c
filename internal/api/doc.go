// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package api provides the REST surface of layersync using the chi router.

Every handler turns a request into one manager operation, waits for its
callback and writes the result in the APIResponse envelope. The HTTP status
is the operation's result code (200, 400, 406-410, 428); a manager that does
not answer within the request timeout yields 504.

Routes:

	GET    /api/health
	GET    /metrics
	GET    /ws
	GET    /api/projects
	POST   /api/projects
	POST   /api/projects/new?title=
	DELETE /api/projects/{projectId}
	GET    /api/layers
	POST   /api/layers
	GET    /api/layers/{layerId}
	PUT    /api/layers/{layerId}
	DELETE /api/layers/{layerId}
	GET    /api/layers/{layerId}/bbox?swlng=&swlat=&nelng=&nelat=
	GET    /api/layers/{layerId}/sphere?lng=&lat=&distance=
	POST   /api/layers/{layerId}/within
	POST   /api/layers/{layerId}/features
	GET    /api/layers/{layerId}/features/{featureId}
	PUT    /api/layers/{layerId}/features/{featureId}
	DELETE /api/layers/{layerId}/features/{featureId}
	PUT    /api/layers/{layerId}/features/{featureId}/properties/{property}
	GET    /api/layers/{layerId}/features/{featureId}/logs
	PUT    /api/layers/{layerId}/features/{featureId}/logs
	POST   /api/layers/{layerId}/features/{featureId}/logs/{property}
	DELETE /api/layers/{layerId}/features/{featureId}/logs/{property}/{ts}
	GET    /api/keys
	GET    /api/keys/events?pattern=
	GET    /api/keys/{keyId}
	PUT    /api/keys/{keyId}
	DELETE /api/keys/{keyId}
	GET    /api/resources
	GET    /api/resources/{resourceId}
	PUT    /api/resources/{resourceId}

Changes made through the API carry Meta{Source: "api", User: <auth user>}.
/api/keys/events streams key writes as server-sent events.
*/
package api
