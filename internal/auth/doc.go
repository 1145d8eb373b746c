// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package auth provides authentication for the REST API and the WebSocket
endpoint.

The authenticated user name becomes models.Meta.User for changes made through
the REST API, so connectors and logs can attribute every change.

Authentication Modes:

  - none: every request is anonymous (default for local use)
  - jwt: HS256 bearer tokens issued by JWTManager
  - basic: HTTP Basic Authentication against one bcrypt-hashed account

Tokens are read from the Authorization header, the "token" cookie, or the
"token" query parameter. Browsers cannot set headers on WebSocket upgrades,
so the query parameter is the usual way for /ws.

Usage Example:

	jwtManager, err := auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	if err != nil {
	    return err
	}
	mw := auth.NewMiddleware(auth.ModeJWT, jwtManager, nil)
	r.Use(mw.Authenticate)

	// In a handler
	user := auth.UserFromContext(r.Context())
*/
package auth
