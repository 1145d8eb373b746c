// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package middleware provides the HTTP middleware the API router stacks in
front of its handlers.

All middleware has the chi signature func(http.Handler) http.Handler.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge labeled by
    chi route pattern
  - AccessLog: one zerolog line per request
  - Chi: CORS (go-chi/cors) and per-IP rate limiting (go-chi/httprate)

Middleware Stack:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Route("/api", func(r chi.Router) {
	    r.Use(mw.RateLimit())
	    r.Use(middleware.PrometheusMetrics)
	    r.Use(middleware.AccessLog)
	    r.Use(authMiddleware.Authenticate)
	    ...
	})
*/
package middleware
