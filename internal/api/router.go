// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cadrelay/cadrelay/internal/models"
)

// Router assembles the HTTP surface from the handler set and the
// middleware factories.
type Router struct {
	handler       *Handler
	authMW        *AuthMiddleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router over the given handler and middleware.
func NewRouter(handler *Handler, authMW *AuthMiddleware, chiMW *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		authMW:        authMW,
		chiMiddleware: chiMW,
	}
}

// Setup configures all HTTP routes using Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware stack, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS must be global to handle OPTIONS preflight.
	r.Use(router.chiMiddleware.CORS())

	// Health and metrics stay unauthenticated so probes and scrapers
	// need no credentials.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/healthz", router.handler.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())
		r.Use(router.authMW.Authenticate())

		// Realtime session endpoint. Rate limit covers upgrade
		// attempts only; established connections are unaffected.
		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.handler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Get("/channels", router.handler.Channels)
			r.Get("/incidents", router.handler.ListIncidents)
			r.Get("/incidents/{id}", router.handler.GetIncident)
		})

		// Incident producers are trusted infrastructure surfaces:
		// only dispatchers and admins may write.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrite())
			r.Use(RequireRole(models.RoleDispatch, models.RoleAdmin))
			r.Post("/incidents", router.handler.CreateIncident)
			r.Post("/incidents/{id}/units", router.handler.AssignUnits)
			r.Post("/incidents/{id}/status", router.handler.SetIncidentStatus)
		})
	})

	return r
}
