// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/layersync/internal/auth"
	"github.com/tomtom215/layersync/internal/authz"
	"github.com/tomtom215/layersync/internal/middleware"
)

// Router binds the handlers to their routes.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
	authz   *authz.Middleware
	chi     *middleware.Chi
}

// NewRouter creates a router. A nil auth middleware disables
// authentication; a nil chi config uses the defaults.
func NewRouter(handler *Handler, authMW *auth.Middleware, chiCfg *middleware.ChiConfig) *Router {
	if authMW == nil {
		authMW = auth.NewMiddleware(auth.ModeNone, nil, nil)
	}
	if chiCfg == nil {
		chiCfg = middleware.DefaultChiConfig()
	}
	return &Router{handler: handler, auth: authMW, chi: middleware.NewChi(chiCfg)}
}

// WithAuthz enforces role permissions on the /api routes after
// authentication.
func (router *Router) WithAuthz(mw *authz.Middleware) *Router {
	router.authz = mw
	return router
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chi.CORS()) // global so OPTIONS preflight is answered

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/health", router.handler.Health)

	// The WebSocket upgrade is long-lived and stays out of the request metrics.
	r.With(router.auth.Authenticate).Get("/ws", router.handler.WebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(router.chi.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.AccessLog)
		r.Use(router.auth.Authenticate)
		if router.authz != nil {
			r.Use(router.authz.Authorize)
		}

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", router.handler.Projects)
			r.Post("/", router.handler.AddProject)
			r.Post("/new", router.handler.NewProject)
			r.Delete("/{projectId}", router.handler.DeleteProject)
		})

		r.Route("/layers", func(r chi.Router) {
			r.Get("/", router.handler.Layers)
			r.Post("/", router.handler.AddLayer)

			r.Route("/{layerId}", func(r chi.Router) {
				r.Get("/", router.handler.GetLayer)
				r.Put("/", router.handler.UpdateLayer)
				r.Delete("/", router.handler.DeleteLayer)
				r.Get("/bbox", router.handler.BBox)
				r.Get("/sphere", router.handler.Sphere)
				r.Post("/within", router.handler.Within)
				r.Post("/features", router.handler.AddFeature)

				r.Route("/features/{featureId}", func(r chi.Router) {
					r.Get("/", router.handler.GetFeature)
					r.Put("/", router.handler.UpdateFeature)
					r.Delete("/", router.handler.DeleteFeature)
					r.Put("/properties/{property}", router.handler.UpdateProperty)
					r.Get("/logs", router.handler.GetLog)
					r.Put("/logs", router.handler.UpdateLogs)
					r.Post("/logs/{property}", router.handler.AddLog)
					r.Delete("/logs/{property}/{ts}", router.handler.DeleteLog)
				})
			})
		})

		r.Route("/keys", func(r chi.Router) {
			r.Get("/", router.handler.Keys)
			r.Get("/events", router.handler.KeyEvents)
			r.Get("/{keyId}", router.handler.GetKey)
			r.Put("/{keyId}", router.handler.UpdateKey)
			r.Delete("/{keyId}", router.handler.DeleteKey)
		})

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", router.handler.Resources)
			r.Get("/{resourceId}", router.handler.GetResource)
			r.Put("/{resourceId}", router.handler.UpdateResource)
		})
	})

	return r
}
